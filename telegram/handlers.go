// Package telegram provides message handlers for the SPIN trainer bot
package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"spin-trainer-bot/scenario"
	"spin-trainer-bot/training"
)

// Handlers routes incoming messages to the training orchestrator.
type Handlers struct {
	svc *training.Service
	sc  *scenario.Scenario
}

// NewHandlers creates the message handlers.
func NewHandlers(svc *training.Service, sc *scenario.Scenario) *Handlers {
	return &Handlers{svc: svc, sc: sc}
}

// Handle dispatches one message. The trainee controls the session with
// plain words: "начать" starts a round, "ДА" requests feedback, "завершить"
// ends the round, "история" shows past rounds; everything else is a question
// to the client.
func (h *Handlers) Handle(ctx context.Context, bot *Bot, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	if msg.IsCommand() {
		return h.handleCommand(ctx, bot, chatID, userID, msg.Command())
	}

	switch strings.ToLower(text) {
	case "начать":
		return h.reply(bot, chatID, h.start(ctx, userID))
	case "да":
		return h.feedback(ctx, bot, chatID, userID)
	case "завершить":
		return h.reply(bot, chatID, h.complete(ctx, userID))
	case "история":
		return h.reply(bot, chatID, h.history(ctx, userID))
	default:
		return h.reply(bot, chatID, h.question(ctx, userID, text))
	}
}

func (h *Handlers) handleCommand(ctx context.Context, bot *Bot, chatID, userID int64, command string) error {
	switch command {
	case "start":
		return bot.SendMessage(chatID, h.sc.Message("start_hint", nil))
	case "feedback":
		return h.feedback(ctx, bot, chatID, userID)
	case "history":
		return bot.SendMessage(chatID, h.history(ctx, userID))
	default:
		slog.Debug("Unknown command ignored", "command", command)
		return nil
	}
}

func (h *Handlers) reply(bot *Bot, chatID int64, text string) error {
	return bot.SendMessage(chatID, text)
}

func (h *Handlers) start(ctx context.Context, userID int64) string {
	text, err := h.svc.StartTraining(ctx, userID)
	if err != nil {
		slog.Error("Failed to start training", "user", userID, "error", err)
		return h.sc.Message("error_generic", nil)
	}
	return text
}

func (h *Handlers) question(ctx context.Context, userID int64, question string) string {
	text, err := h.svc.ProcessQuestion(ctx, userID, question)
	if err != nil {
		slog.Error("Failed to process question", "user", userID, "error", err)
		return h.sc.Message("error_generic", nil)
	}
	return text
}

func (h *Handlers) complete(ctx context.Context, userID int64) string {
	text, err := h.svc.CompleteTraining(ctx, userID)
	if err != nil {
		slog.Error("Failed to complete training", "user", userID, "error", err)
		return h.sc.Message("error_generic", nil)
	}
	return text
}

func (h *Handlers) history(ctx context.Context, userID int64) string {
	text, err := h.svc.History(ctx, userID)
	if err != nil {
		slog.Error("Failed to load history", "user", userID, "error", err)
		return h.sc.Message("error_generic", nil)
	}
	return text
}

// feedback shows a placeholder message and live-edits it with streamed
// deltas, then replaces it with the final text.
func (h *Handlers) feedback(ctx context.Context, bot *Bot, chatID, userID int64) error {
	live := newLiveMessage(bot, chatID, h.sc.Message("feedback_pending", nil))

	text, err := h.svc.Feedback(ctx, userID, live.Update)
	if err != nil {
		slog.Error("Failed to generate feedback", "user", userID, "error", err)
		text = h.sc.Message("error_generic", nil)
	}
	return live.Finish(text)
}
