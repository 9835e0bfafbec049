package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spin-trainer-bot/config"
	"spin-trainer-bot/llm"
	"spin-trainer-bot/scenario"
	"spin-trainer-bot/storage"
	"spin-trainer-bot/telegram"
	"spin-trainer-bot/training"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	sc, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		slog.Error("Failed to load scenario", "error", err)
		os.Exit(1)
	}

	providers := make(map[string]llm.Provider)
	if cfg.OpenAIAPIKey != "" {
		p, err := llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMTimeout)
		if err != nil {
			slog.Error("Failed to init OpenAI provider", "error", err)
			os.Exit(1)
		}
		providers["openai"] = p
	}
	if cfg.AnthropicAPIKey != "" {
		p, err := llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.LLMTimeout)
		if err != nil {
			slog.Error("Failed to init Anthropic provider", "error", err)
			os.Exit(1)
		}
		providers["anthropic"] = p
	}

	gateway, err := llm.NewGateway(providers, llm.GatewayConfig{
		Routes:      cfg.Routes,
		MaxRetries:  cfg.MaxRetries,
		FailureText: sc.Message("error_generic", nil),
	})
	if err != nil {
		slog.Error("Failed to init LLM gateway", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	store, err := storage.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	cases := scenario.NewCaseGenerator(sc.Cases, rand.New(rand.NewSource(time.Now().UnixNano())))
	svc := training.NewService(store, gateway, cases, sc, training.Allowlist(cfg.AllowedUsers))

	bot, err := telegram.NewBot(cfg.TelegramToken, telegram.NewHandlers(svc, sc))
	if err != nil {
		slog.Error("Failed to init Telegram bot", "error", err)
		os.Exit(1)
	}
	bot.AddMiddleware(telegram.LoggingMiddleware)
	bot.AddMiddleware(telegram.RateLimitMiddleware(telegram.NewRateLimiter(cfg.RateLimit)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("SPIN trainer bot starting")
	bot.Run(ctx)
	slog.Info("Shutdown complete")
}
