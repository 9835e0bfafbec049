// Package llm provides the inference gateway with routing, retries and fallback
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
)

// DefaultFailureText is sent to the user when primary and fallback routes are
// both exhausted. Raw provider errors never reach the chat.
const DefaultFailureText = "Произошла ошибка при генерации ответа. Попробуйте ещё раз позже."

// Route names the primary and fallback provider/model pair for one call kind.
// Routes are fixed at gateway construction and never mutated.
type Route struct {
	PrimaryProvider  string
	PrimaryModel     string
	FallbackProvider string
	FallbackModel    string
}

// GatewayConfig configures routing and the retry policy.
type GatewayConfig struct {
	Routes      map[Kind]Route
	MaxRetries  uint   // extra primary attempts for non-feedback kinds
	FailureText string // user-safe text on total exhaustion
}

// Gateway multiplexes inference calls over the configured providers.
// Invoke absorbs all failures; InvokeStreaming surfaces them so the caller
// can fall back to the blocking path.
type Gateway struct {
	providers   map[string]Provider
	routes      map[Kind]Route
	maxRetries  uint
	failureText string
}

// NewGateway creates a gateway over the given named providers.
func NewGateway(providers map[string]Provider, cfg GatewayConfig) (*Gateway, error) {
	for kind, route := range cfg.Routes {
		if _, ok := providers[route.PrimaryProvider]; !ok {
			return nil, fmt.Errorf("route %s: unknown primary provider %q", kind, route.PrimaryProvider)
		}
		if _, ok := providers[route.FallbackProvider]; !ok {
			return nil, fmt.Errorf("route %s: unknown fallback provider %q", kind, route.FallbackProvider)
		}
	}

	failureText := cfg.FailureText
	if failureText == "" {
		failureText = DefaultFailureText
	}

	return &Gateway{
		providers:   providers,
		routes:      cfg.Routes,
		maxRetries:  cfg.MaxRetries,
		failureText: failureText,
	}, nil
}

// Invoke sends a blocking request over the route for kind. On total
// exhaustion the configured failure text is returned - this method never
// reports an error to its caller.
func (g *Gateway) Invoke(ctx context.Context, kind Kind, systemPrompt, userMessage string) string {
	text, err := g.generate(ctx, kind, systemPrompt, userMessage)
	if err != nil {
		return g.failureText
	}
	return text
}

// TryInvoke is Invoke with an explicit outcome: ok is false when every route
// failed and no usable text exists. Callers that need to distinguish "the
// model answered" from "inference is down" use this instead of Invoke.
func (g *Gateway) TryInvoke(ctx context.Context, kind Kind, systemPrompt, userMessage string) (string, bool) {
	text, err := g.generate(ctx, kind, systemPrompt, userMessage)
	if err != nil {
		return "", false
	}
	return text, true
}

// generate runs the route for kind: the primary is retried up to the
// configured attempts (feedback calls are long, so they skip primary retries
// and fail over immediately), then the fallback is tried once.
func (g *Gateway) generate(ctx context.Context, kind Kind, systemPrompt, userMessage string) (string, error) {
	route, ok := g.routes[kind]
	if !ok {
		slog.Error("No route configured", "kind", kind)
		return "", fmt.Errorf("no route configured for kind %s", kind)
	}

	attempts := g.maxRetries + 1
	if kind == KindFeedback {
		attempts = 1
	}

	var text string
	err := retry.Do(
		func() error {
			out, err := g.providers[route.PrimaryProvider].Generate(ctx, route.PrimaryModel, kind, systemPrompt, userMessage)
			if err != nil {
				if !IsRetryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			text = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return text, nil
	}
	slog.Warn("Primary route failed",
		"kind", kind,
		"provider", route.PrimaryProvider,
		"model", route.PrimaryModel,
		"error", err)

	out, err := g.providers[route.FallbackProvider].Generate(ctx, route.FallbackModel, kind, systemPrompt, userMessage)
	if err != nil {
		slog.Error("Fallback route failed",
			"kind", kind,
			"provider", route.FallbackProvider,
			"model", route.FallbackModel,
			"error", err)
		return "", fmt.Errorf("all routes exhausted for kind %s: %w", kind, err)
	}
	return out, nil
}

// InvokeStreaming opens a delta stream over the primary route for kind.
// Unlike Invoke it returns errors: the caller is expected to catch them (and
// an empty aggregated stream) and re-issue the request through Invoke.
func (g *Gateway) InvokeStreaming(ctx context.Context, kind Kind, systemPrompt, userMessage string) (<-chan string, error) {
	route, ok := g.routes[kind]
	if !ok {
		return nil, fmt.Errorf("no route configured for kind %s", kind)
	}

	stream, err := g.providers[route.PrimaryProvider].Stream(ctx, route.PrimaryModel, kind, systemPrompt, userMessage)
	if err != nil {
		return nil, fmt.Errorf("stream via %s/%s: %w", route.PrimaryProvider, route.PrimaryModel, err)
	}
	return stream, nil
}

// Close shuts down all providers.
func (g *Gateway) Close() error {
	var firstErr error
	for name, p := range g.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close provider %s: %w", name, err)
		}
	}
	return firstErr
}
