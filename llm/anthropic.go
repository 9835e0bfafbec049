// Package llm provides the Anthropic model family adapter
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements Provider for the Anthropic Messages API.
// The wire shape differs from OpenAI: the system prompt is a top-level field
// and the response is a list of typed content blocks. Streaming uses
// server-sent events ("data: " framed JSON lines).
type AnthropicProvider struct {
	rest    *resty.Client
	http    *http.Client
	apiKey  string
	baseURL string
}

// NewAnthropicProvider creates an Anthropic provider. The blocking and the
// streaming path share one pooled HTTP transport.
func NewAnthropicProvider(apiKey, baseURL string, timeout time.Duration) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required")
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	hc := &http.Client{Timeout: timeout}
	rest := resty.NewWithClient(hc)
	rest.SetBaseURL(baseURL)
	rest.SetHeader("x-api-key", apiKey)
	rest.SetHeader("anthropic-version", anthropicVersion)
	rest.SetHeader("Content-Type", "application/json")

	return &AnthropicProvider{
		rest:    rest,
		http:    hc,
		apiKey:  apiKey,
		baseURL: baseURL,
	}, nil
}

// anthropicRequest is the Messages API payload.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float32            `json:"temperature"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the blocking Messages API response.
type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// anthropicStreamEvent is one SSE event of a streamed response.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// Generate sends a blocking Messages request and returns the response text.
func (p *AnthropicProvider) Generate(ctx context.Context, model string, kind Kind, systemPrompt, userMessage string) (string, error) {
	body := anthropicRequest{
		Model:       model,
		MaxTokens:   kindMaxTokens(kind),
		System:      systemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: userMessage}},
		Temperature: kindTemperature(kind),
	}

	resp, err := p.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&anthropicResponse{}).
		Post("/v1/messages")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", &ProviderError{Provider: "anthropic", Status: resp.StatusCode(), Message: resp.String()}
	}

	result, ok := resp.Result().(*anthropicResponse)
	if !ok || result == nil {
		return "", ErrEmptyResponse
	}

	// Extraction is defensive: skip non-text blocks, join the rest.
	var parts []string
	for _, block := range result.Content {
		if block.Type != "" && block.Type != "text" {
			continue
		}
		if s := strings.TrimSpace(block.Text); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.Join(parts, " "), nil
}

// Stream sends a streaming Messages request and forwards text deltas.
func (p *AnthropicProvider) Stream(ctx context.Context, model string, kind Kind, systemPrompt, userMessage string) (<-chan string, error) {
	body := anthropicRequest{
		Model:       model,
		MaxTokens:   kindMaxTokens(kind),
		System:      systemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: userMessage}},
		Temperature: kindTemperature(kind),
		Stream:      true,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &ProviderError{Provider: "anthropic", Status: resp.StatusCode, Message: string(raw)}
	}

	ch := make(chan string)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimSpace(line[len("data: "):])
			if data == "[DONE]" {
				return
			}
			var evt anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				continue
			}
			if evt.Type == "message_stop" {
				return
			}
			if evt.Type != "content_block_delta" || evt.Delta.Text == "" {
				continue
			}
			select {
			case ch <- evt.Delta.Text:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("Anthropic stream interrupted", "model", model, "error", err)
		}
	}()

	return ch, nil
}

// Close releases provider resources.
func (p *AnthropicProvider) Close() error {
	p.http.CloseIdleConnections()
	return nil
}
