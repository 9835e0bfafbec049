// Package telegram provides middleware for rate limiting and logging
package telegram

import (
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RateLimiter implements rate limiting per user
type RateLimiter struct {
	mu        sync.Mutex
	lastSeen  map[int64]time.Time
	threshold time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(threshold time.Duration) *RateLimiter {
	return &RateLimiter{
		lastSeen:  make(map[int64]time.Time),
		threshold: threshold,
	}
}

// Allow checks if user is within rate limit
func (rl *RateLimiter) Allow(userID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	lastTime, exists := rl.lastSeen[userID]
	if !exists || now.Sub(lastTime) > rl.threshold {
		rl.lastSeen[userID] = now
		return true
	}
	return false
}

// LoggingMiddleware logs all incoming updates
func LoggingMiddleware(update *tgbotapi.Update) (bool, error) {
	if update.Message != nil {
		slog.Info("Update received",
			"user", update.Message.From.ID,
			"username", update.Message.From.UserName,
			"chat", update.Message.Chat.ID,
			"len", len(update.Message.Text),
		)
	}
	return true, nil
}

// RateLimitMiddleware drops messages that arrive faster than the threshold
func RateLimitMiddleware(limiter *RateLimiter) Middleware {
	return func(update *tgbotapi.Update) (bool, error) {
		if update.Message == nil {
			return true, nil
		}
		userID := update.Message.From.ID
		if !limiter.Allow(userID) {
			slog.Info("Rate limit triggered", "user", userID)
			return false, nil
		}
		return true, nil
	}
}
