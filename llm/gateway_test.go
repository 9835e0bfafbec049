package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider scripts Generate responses and records call counts.
type stubProvider struct {
	calls     int
	responses []stubResponse
	streamCh  <-chan string
	streamErr error
}

type stubResponse struct {
	text string
	err  error
}

func (s *stubProvider) Generate(_ context.Context, _ string, _ Kind, _, _ string) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i].text, s.responses[i].err
}

func (s *stubProvider) Stream(_ context.Context, _ string, _ Kind, _, _ string) (<-chan string, error) {
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	return s.streamCh, nil
}

func (s *stubProvider) Close() error { return nil }

func newTestGateway(t *testing.T, primary, fallback *stubProvider, maxRetries uint) *Gateway {
	t.Helper()
	routes := map[Kind]Route{}
	for _, kind := range []Kind{KindResponse, KindFeedback, KindClassification, KindContext} {
		routes[kind] = Route{
			PrimaryProvider: "primary", PrimaryModel: "model-a",
			FallbackProvider: "fallback", FallbackModel: "model-b",
		}
	}
	g, err := NewGateway(map[string]Provider{"primary": primary, "fallback": fallback}, GatewayConfig{
		Routes:     routes,
		MaxRetries: maxRetries,
	})
	require.NoError(t, err)
	return g
}

func TestInvokePrimarySuccess(t *testing.T) {
	primary := &stubProvider{responses: []stubResponse{{text: "ответ"}}}
	fallback := &stubProvider{responses: []stubResponse{{text: "fallback"}}}
	g := newTestGateway(t, primary, fallback, 2)

	got := g.Invoke(context.Background(), KindResponse, "system", "вопрос")
	assert.Equal(t, "ответ", got)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestInvokeRetriesThenFallsBack(t *testing.T) {
	boom := &ProviderError{Provider: "primary", Status: 500, Message: "boom"}
	primary := &stubProvider{responses: []stubResponse{{err: boom}}}
	fallback := &stubProvider{responses: []stubResponse{{text: "запасной"}}}
	g := newTestGateway(t, primary, fallback, 2)

	got := g.Invoke(context.Background(), KindResponse, "system", "вопрос")
	assert.Equal(t, "запасной", got)
	assert.Equal(t, 3, primary.calls, "maxRetries=2 means three primary attempts")
	assert.Equal(t, 1, fallback.calls)
}

func TestInvokeRecoversWithinRetries(t *testing.T) {
	boom := &ProviderError{Provider: "primary", Status: 500, Message: "boom"}
	primary := &stubProvider{responses: []stubResponse{{err: boom}, {text: "со второй попытки"}}}
	fallback := &stubProvider{responses: []stubResponse{{text: "fallback"}}}
	g := newTestGateway(t, primary, fallback, 2)

	got := g.Invoke(context.Background(), KindResponse, "system", "вопрос")
	assert.Equal(t, "со второй попытки", got)
	assert.Equal(t, 0, fallback.calls)
}

func TestInvokeFeedbackSkipsPrimaryRetries(t *testing.T) {
	boom := &ProviderError{Provider: "primary", Status: 500, Message: "boom"}
	primary := &stubProvider{responses: []stubResponse{{err: boom}}}
	fallback := &stubProvider{responses: []stubResponse{{text: "фидбек"}}}
	g := newTestGateway(t, primary, fallback, 2)

	got := g.Invoke(context.Background(), KindFeedback, "system", "вопрос")
	assert.Equal(t, "фидбек", got)
	assert.Equal(t, 1, primary.calls, "feedback fails over after a single primary attempt")
}

func TestInvokeClientErrorSkipsRetries(t *testing.T) {
	badRequest := &ProviderError{Provider: "primary", Status: 400, Message: "bad request"}
	primary := &stubProvider{responses: []stubResponse{{err: badRequest}}}
	fallback := &stubProvider{responses: []stubResponse{{text: "запасной"}}}
	g := newTestGateway(t, primary, fallback, 3)

	got := g.Invoke(context.Background(), KindResponse, "system", "вопрос")
	assert.Equal(t, "запасной", got)
	assert.Equal(t, 1, primary.calls, "4xx is not retried")
}

func TestInvokeRateLimitIsRetried(t *testing.T) {
	limited := &ProviderError{Provider: "primary", Status: 429, Message: "rate limited"}
	primary := &stubProvider{responses: []stubResponse{{err: limited}, {text: "ок"}}}
	fallback := &stubProvider{responses: []stubResponse{{text: "fallback"}}}
	g := newTestGateway(t, primary, fallback, 2)

	got := g.Invoke(context.Background(), KindResponse, "system", "вопрос")
	assert.Equal(t, "ок", got)
}

func TestInvokeTotalExhaustionReturnsFailureText(t *testing.T) {
	boom := &ProviderError{Provider: "p", Status: 500, Message: "boom"}
	primary := &stubProvider{responses: []stubResponse{{err: boom}}}
	fallback := &stubProvider{responses: []stubResponse{{err: boom}}}
	g := newTestGateway(t, primary, fallback, 1)

	got := g.Invoke(context.Background(), KindResponse, "system", "вопрос")
	assert.Equal(t, DefaultFailureText, got)
}

func TestTryInvokeReportsOutcome(t *testing.T) {
	primary := &stubProvider{responses: []stubResponse{{text: "ответ"}}}
	fallback := &stubProvider{}
	g := newTestGateway(t, primary, fallback, 0)

	got, ok := g.TryInvoke(context.Background(), KindContext, "system", "вопрос")
	assert.True(t, ok)
	assert.Equal(t, "ответ", got)
}

func TestTryInvokeFalseOnExhaustion(t *testing.T) {
	boom := &ProviderError{Provider: "p", Status: 500, Message: "boom"}
	primary := &stubProvider{responses: []stubResponse{{err: boom}}}
	fallback := &stubProvider{responses: []stubResponse{{err: boom}}}
	g := newTestGateway(t, primary, fallback, 0)

	got, ok := g.TryInvoke(context.Background(), KindContext, "system", "вопрос")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestInvokeStreamingSurfacesErrors(t *testing.T) {
	primary := &stubProvider{streamErr: errors.New("no stream for you")}
	fallback := &stubProvider{}
	g := newTestGateway(t, primary, fallback, 0)

	_, err := g.InvokeStreaming(context.Background(), KindFeedback, "system", "вопрос")
	assert.Error(t, err)
}

func TestInvokeStreamingPassesThrough(t *testing.T) {
	ch := make(chan string, 2)
	ch <- "дел"
	ch <- "ьта"
	close(ch)

	primary := &stubProvider{streamCh: ch}
	fallback := &stubProvider{}
	g := newTestGateway(t, primary, fallback, 0)

	stream, err := g.InvokeStreaming(context.Background(), KindFeedback, "system", "вопрос")
	require.NoError(t, err)

	var got string
	for delta := range stream {
		got += delta
	}
	assert.Equal(t, "дельта", got)
}

func TestNewGatewayRejectsUnknownProvider(t *testing.T) {
	_, err := NewGateway(map[string]Provider{}, GatewayConfig{
		Routes: map[Kind]Route{
			KindResponse: {PrimaryProvider: "ghost", FallbackProvider: "ghost"},
		},
	})
	assert.ErrorContains(t, err, "unknown primary provider")
}
