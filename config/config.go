// Package config provides configuration loading for the SPIN trainer bot
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"spin-trainer-bot/llm"
)

// BotConfig represents bot configuration loaded from environment variables
type BotConfig struct {
	TelegramToken string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string

	Routes     map[llm.Kind]llm.Route
	MaxRetries uint
	LLMTimeout time.Duration

	DBPath       string
	ScenarioPath string
	RateLimit    time.Duration
	AllowedUsers []int64
}

// LoadConfig loads bot configuration from environment variables
func LoadConfig() (BotConfig, error) {
	token := getEnv("TELEGRAM_BOT_TOKEN", "")
	if token == "" {
		return BotConfig{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")
	anthropicKey := getEnv("ANTHROPIC_API_KEY", "")
	if openAIKey == "" && anthropicKey == "" {
		return BotConfig{}, fmt.Errorf("at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY is required")
	}

	// Each call kind routes to a primary model with a single fallback,
	// OpenAI primary with an Anthropic fallback by default. With only one
	// key configured both legs collapse onto the available provider so a
	// single-key deployment still boots. The context check shares the
	// classification route.
	generationModel := map[string]string{
		"openai":    "gpt-4o",
		"anthropic": "claude-3-5-sonnet-20241022",
	}
	labelModel := map[string]string{
		"openai":    "gpt-4o-mini",
		"anthropic": "claude-3-5-haiku-20241022",
	}
	primary, fallback := "openai", "anthropic"
	if openAIKey == "" {
		primary = "anthropic"
	}
	if anthropicKey == "" {
		fallback = "openai"
	}

	routes := map[llm.Kind]llm.Route{
		llm.KindResponse: routeFromEnv("RESPONSE",
			llm.Route{PrimaryProvider: primary, PrimaryModel: generationModel[primary],
				FallbackProvider: fallback, FallbackModel: generationModel[fallback]}),
		llm.KindFeedback: routeFromEnv("FEEDBACK",
			llm.Route{PrimaryProvider: primary, PrimaryModel: generationModel[primary],
				FallbackProvider: fallback, FallbackModel: generationModel[fallback]}),
		llm.KindClassification: routeFromEnv("CLASSIFICATION",
			llm.Route{PrimaryProvider: primary, PrimaryModel: labelModel[primary],
				FallbackProvider: fallback, FallbackModel: labelModel[fallback]}),
	}
	routes[llm.KindContext] = routes[llm.KindClassification]

	allowed, err := parseIDList(getEnv("ALLOWED_USER_IDS", ""))
	if err != nil {
		return BotConfig{}, fmt.Errorf("parse ALLOWED_USER_IDS: %w", err)
	}

	return BotConfig{
		TelegramToken:    token,
		OpenAIAPIKey:     openAIKey,
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:  anthropicKey,
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
		Routes:           routes,
		MaxRetries:       uint(getEnvInt("LLM_MAX_RETRIES", 2)),
		LLMTimeout:       time.Duration(getEnvInt("LLM_TIMEOUT_SEC", 60)) * time.Second,
		DBPath:           getEnv("DB_PATH", "data/trainer.db"),
		ScenarioPath:     getEnv("SCENARIO_PATH", ""),
		RateLimit:        time.Duration(getEnvInt("RATE_LIMIT_MS", 300)) * time.Millisecond,
		AllowedUsers:     allowed,
	}, nil
}

// routeFromEnv overlays <PREFIX>_PRIMARY_PROVIDER, <PREFIX>_PRIMARY_MODEL,
// <PREFIX>_FALLBACK_PROVIDER and <PREFIX>_FALLBACK_MODEL onto defaults.
func routeFromEnv(prefix string, def llm.Route) llm.Route {
	return llm.Route{
		PrimaryProvider:  getEnv(prefix+"_PRIMARY_PROVIDER", def.PrimaryProvider),
		PrimaryModel:     getEnv(prefix+"_PRIMARY_MODEL", def.PrimaryModel),
		FallbackProvider: getEnv(prefix+"_FALLBACK_PROVIDER", def.FallbackProvider),
		FallbackModel:    getEnv(prefix+"_FALLBACK_MODEL", def.FallbackModel),
	}
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
