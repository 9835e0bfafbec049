// Package telegram provides live-edited streaming output and message splitting
package telegram

import (
	"log/slog"
	"strings"
)

const (
	maxMessageLength = 4096 // Telegram message limit
	editEvery        = 10   // deltas between live edits
)

// liveMessage is a placeholder message that gets edited in place as streamed
// deltas arrive, so the user watches the text grow instead of waiting.
type liveMessage struct {
	bot       *Bot
	chatID    int64
	messageID int
	deltas    int
}

func newLiveMessage(bot *Bot, chatID int64, placeholder string) *liveMessage {
	id, err := bot.SendAndTrack(chatID, placeholder)
	if err != nil {
		slog.Warn("Failed to send placeholder message", "chat", chatID, "error", err)
	}
	return &liveMessage{bot: bot, chatID: chatID, messageID: id}
}

// Update edits the placeholder with the current aggregate, throttled to one
// edit per batch of deltas. Edit failures are ignored; the final text always
// arrives via Finish.
func (m *liveMessage) Update(partial string) {
	m.deltas++
	if m.messageID == 0 || m.deltas%editEvery != 0 {
		return
	}
	if len(partial) > maxMessageLength {
		partial = partial[:maxMessageLength]
	}
	if err := m.bot.EditMessage(m.chatID, m.messageID, partial); err != nil {
		slog.Debug("Live edit failed", "chat", m.chatID, "error", err)
	}
}

// Finish replaces the placeholder with the final text, falling back to a
// fresh message when the edit is impossible.
func (m *liveMessage) Finish(text string) error {
	if m.messageID != 0 && len(text) <= maxMessageLength {
		if err := m.bot.EditMessage(m.chatID, m.messageID, text); err == nil {
			return nil
		}
	}
	return m.bot.SendMessage(m.chatID, text)
}

// splitText splits text into chunks that fit within max length
func splitText(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > 0 {
		if len(remaining) <= max {
			chunks = append(chunks, remaining)
			break
		}
		cut := findBestSplitPoint(remaining[:max])
		chunks = append(chunks, remaining[:cut])
		remaining = remaining[cut:]
	}
	return chunks
}

// findBestSplitPoint finds the best place to split text
func findBestSplitPoint(text string) int {
	// Priority order: sentence end, newline, space
	for _, sep := range []string{".", "\n", "?", "!", " "} {
		if pos := strings.LastIndex(text, sep); pos > 0 && pos < len(text)-1 {
			return pos + 1
		}
	}
	return len(text)
}
