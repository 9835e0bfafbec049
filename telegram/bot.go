// Package telegram provides Telegram Bot API integration for the SPIN trainer bot
package telegram

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Middleware processes updates before handlers
type Middleware func(update *tgbotapi.Update) (bool, error)

// Bot represents a Telegram bot instance
type Bot struct {
	api        *tgbotapi.BotAPI
	handlers   *Handlers
	middleware []Middleware
	wg         sync.WaitGroup
}

// NewBot creates a new Telegram bot instance
func NewBot(token string, handlers *Handlers) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	slog.Info("Telegram bot authorized", "username", api.Self.UserName)

	return &Bot{
		api:      api,
		handlers: handlers,
	}, nil
}

// AddMiddleware adds middleware to the bot
func (b *Bot) AddMiddleware(mw Middleware) {
	b.middleware = append(b.middleware, mw)
}

// Run polls for updates until the context is cancelled. Each update is
// handled in its own goroutine; per-user ordering is enforced downstream.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	slog.Info("Bot started polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			slog.Info("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, &update)
			}(update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	for _, mw := range b.middleware {
		cont, err := mw(update)
		if err != nil {
			slog.Error("Middleware error", "error", err)
			return
		}
		if !cont {
			return
		}
	}

	if update.Message == nil || update.Message.Text == "" {
		return
	}

	if err := b.handlers.Handle(ctx, b, update.Message); err != nil {
		slog.Error("Handler error",
			"user", update.Message.From.ID,
			"error", err)
	}
}

// SendMessage sends a plain text message, splitting it when it exceeds the
// Telegram length limit.
func (b *Bot) SendMessage(chatID int64, text string) error {
	for _, chunk := range splitText(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if _, err := b.api.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// SendAndTrack sends a message and returns its ID for later edits.
func (b *Bot) SendAndTrack(chatID int64, text string) (int, error) {
	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text of a previously sent message.
func (b *Bot) EditMessage(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := b.api.Send(edit)
	return err
}
