// Package llm provides the OpenAI model family adapter
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"resty.dev/v3"
)

// OpenAIProvider implements Provider for OpenAI models. Two wire shapes are
// hidden here: the chat-style system/user message list (GPT-4 era models) and
// the flat instructions/input payload of the Responses endpoint (gpt-5*).
type OpenAIProvider struct {
	client *openai.Client
	rest   *resty.Client
}

// NewOpenAIProvider creates an OpenAI provider. Both underlying HTTP clients
// keep connections alive and are safe for concurrent use.
func NewOpenAIProvider(apiKey, baseURL string, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	rest := resty.New()
	rest.SetBaseURL(clientConfig.BaseURL)
	rest.SetTimeout(timeout)
	rest.SetHeader("Authorization", "Bearer "+apiKey)
	rest.SetHeader("Content-Type", "application/json")

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		rest:   rest,
	}, nil
}

// usesResponsesAPI reports whether the model speaks the flat
// instructions/input shape instead of the chat message list.
func usesResponsesAPI(model string) bool {
	return strings.HasPrefix(model, "gpt-5")
}

// Generate sends a blocking request and returns the response text.
func (p *OpenAIProvider) Generate(ctx context.Context, model string, kind Kind, systemPrompt, userMessage string) (string, error) {
	if usesResponsesAPI(model) {
		return p.generateResponses(ctx, model, kind, systemPrompt, userMessage)
	}
	return p.generateChat(ctx, model, kind, systemPrompt, userMessage)
}

func (p *OpenAIProvider) generateChat(ctx context.Context, model string, kind Kind, systemPrompt, userMessage string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: kindTemperature(kind),
		MaxTokens:   kindMaxTokens(kind),
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// responsesRequest is the flat payload of the Responses endpoint.
type responsesRequest struct {
	Model           string `json:"model"`
	Instructions    string `json:"instructions"`
	Input           string `json:"input"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

// responsesResponse covers the plausible shapes of a Responses payload. The
// endpoint has shipped several of them, so extraction tries each in turn.
type responsesResponse struct {
	OutputText string            `json:"output_text"`
	Output     []responsesOutput `json:"output"`
	Choices    []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type responsesOutput struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

type responsesContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (p *OpenAIProvider) generateResponses(ctx context.Context, model string, kind Kind, systemPrompt, userMessage string) (string, error) {
	maxTokens := kindMaxTokens(kind)
	if kind == KindResponse || kind == KindFeedback {
		// Responses models spend part of the budget on reasoning tokens.
		maxTokens = 2000
	}

	body := responsesRequest{
		Model:           model,
		Instructions:    systemPrompt,
		Input:           userMessage,
		MaxOutputTokens: maxTokens,
	}

	resp, err := p.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&responsesResponse{}).
		Post("/responses")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", &ProviderError{Provider: "openai", Status: resp.StatusCode(), Message: resp.String()}
	}

	result, ok := resp.Result().(*responsesResponse)
	if !ok || result == nil {
		return "", ErrEmptyResponse
	}
	content := extractResponsesText(result)
	if content == "" {
		slog.Warn("Responses payload contained no text", "model", model)
		return "", ErrEmptyResponse
	}
	return content, nil
}

// extractResponsesText tries the known payload shapes in order of preference.
func extractResponsesText(r *responsesResponse) string {
	if text := strings.TrimSpace(r.OutputText); text != "" {
		return text
	}

	var parts []string
	for _, item := range r.Output {
		if len(item.Content) == 0 {
			continue
		}
		// content is either a plain string or a list of typed blocks
		var asString string
		if err := json.Unmarshal(item.Content, &asString); err == nil {
			if s := strings.TrimSpace(asString); s != "" {
				parts = append(parts, s)
			}
			continue
		}
		var blocks []responsesContentBlock
		if err := json.Unmarshal(item.Content, &blocks); err == nil {
			for _, b := range blocks {
				if s := strings.TrimSpace(b.Text); s != "" {
					parts = append(parts, s)
				}
			}
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	if len(r.Choices) > 0 {
		return strings.TrimSpace(r.Choices[0].Message.Content)
	}
	return ""
}

// Stream sends a streaming chat request. Responses-family models have no
// streaming path here; the gateway caller falls back to Generate.
func (p *OpenAIProvider) Stream(ctx context.Context, model string, kind Kind, systemPrompt, userMessage string) (<-chan string, error) {
	if usesResponsesAPI(model) {
		return nil, ErrStreamUnsupported
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: kindTemperature(kind),
		MaxTokens:   kindMaxTokens(kind),
		Stream:      true,
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}

	ch := make(chan string)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					slog.Warn("OpenAI stream interrupted", "model", model, "error", err)
				}
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case ch <- choice.Delta.Content:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close releases provider resources.
func (p *OpenAIProvider) Close() error {
	return p.rest.Close()
}

// wrapOpenAIError converts SDK errors into the shared taxonomy so the
// gateway retry policy can classify them.
func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Type
		}
		return &ProviderError{Provider: "openai", Status: apiErr.HTTPStatusCode, Message: msg}
	}
	return err
}
