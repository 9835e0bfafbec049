// Package llm provides LLM provider integration for the SPIN trainer bot
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the logical purpose of an inference call. It selects the
// provider/model route and the generation parameters.
type Kind string

const (
	KindResponse       Kind = "response"       // simulated client reply
	KindFeedback       Kind = "feedback"       // coaching feedback text
	KindClassification Kind = "classification" // question type label
	KindContext        Kind = "context"        // active listening yes/no check
)

// Provider is implemented by each model family adapter.
//
// Generate sends a blocking request and returns the full response text.
// Stream sends a streaming request and returns a channel of text deltas;
// the channel is closed when the stream ends. Adapters that cannot stream
// the given model return ErrStreamUnsupported.
type Provider interface {
	Generate(ctx context.Context, model string, kind Kind, systemPrompt, userMessage string) (string, error)
	Stream(ctx context.Context, model string, kind Kind, systemPrompt, userMessage string) (<-chan string, error)
	Close() error
}

var (
	// ErrEmptyResponse means the provider answered but no usable text could
	// be extracted. Treated as retryable.
	ErrEmptyResponse = errors.New("empty provider response")

	// ErrStreamUnsupported means the selected provider/model combination has
	// no streaming path. The caller re-issues through Generate.
	ErrStreamUnsupported = errors.New("streaming not supported")
)

// ProviderError is a non-transport failure reported by a provider API.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.Status, e.Message)
}

// IsRetryable reports whether a failed call is worth repeating on the same
// route. Parameter/auth rejections (4xx except 429) are not; everything else
// (timeouts, 5xx, rate limits, empty responses, network errors) is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Status == 429 || perr.Status >= 500
	}
	return true
}

// kindTemperature returns the sampling temperature for a call kind.
// Classification and context checks must be deterministic.
func kindTemperature(kind Kind) float32 {
	switch kind {
	case KindClassification, KindContext:
		return 0.0
	default:
		return 0.7
	}
}

// kindMaxTokens bounds the completion size per call kind. Labels and yes/no
// answers are tiny, generated text is capped to keep replies chat-sized.
func kindMaxTokens(kind Kind) int {
	switch kind {
	case KindClassification:
		return 20
	case KindContext:
		return 20
	default:
		return 400
	}
}
