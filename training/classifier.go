package training

import (
	"context"
	"log/slog"
	"strings"

	"spin-trainer-bot/llm"
	"spin-trainer-bot/scenario"
)

// Invoker is the gateway surface the training core needs. Invoke never
// fails; TryInvoke reports inference failure explicitly; InvokeStreaming
// may fail, in which case the caller reverts to Invoke.
type Invoker interface {
	Invoke(ctx context.Context, kind llm.Kind, systemPrompt, userMessage string) string
	TryInvoke(ctx context.Context, kind llm.Kind, systemPrompt, userMessage string) (string, bool)
	InvokeStreaming(ctx context.Context, kind llm.Kind, systemPrompt, userMessage string) (<-chan string, error)
}

// Classifier labels trainee questions with one of the scenario's question
// types via the inference gateway.
type Classifier struct {
	gateway Invoker
	sc      *scenario.Scenario
}

// NewClassifier creates a classifier over the gateway and scenario.
func NewClassifier(gateway Invoker, sc *scenario.Scenario) *Classifier {
	return &Classifier{gateway: gateway, sc: sc}
}

// Classify returns the question type for a trainee question. It always
// returns a usable type: when the model produces a label outside the
// configured set, or the call fails entirely, the scenario's lowest-weight
// type is used so the session never stalls half-classified.
func (c *Classifier) Classify(ctx context.Context, question, caseText string) scenario.QuestionType {
	ids := make([]string, 0, len(c.sc.QuestionTypes))
	for _, qt := range c.sc.QuestionTypes {
		ids = append(ids, qt.ID)
	}

	systemPrompt := c.sc.Prompt("classification", map[string]any{
		"types": strings.Join(ids, ", "),
		"case":  caseText,
	})

	label := c.gateway.Invoke(ctx, llm.KindClassification, systemPrompt, question)
	if qt, ok := c.matchLabel(label); ok {
		return qt
	}

	fallback := c.sc.DefaultQuestionType()
	slog.Warn("Unrecognized classification label, using default type",
		"label", label,
		"default", fallback.ID)
	return fallback
}

// matchLabel maps raw model output to a known type. Models tend to answer
// with extra words around the id, so a substring match on the id suffices.
func (c *Classifier) matchLabel(label string) (scenario.QuestionType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return scenario.QuestionType{}, false
	}
	for _, qt := range c.sc.QuestionTypes {
		if normalized == qt.ID || strings.Contains(normalized, qt.ID) {
			return qt, true
		}
	}
	return scenario.QuestionType{}, false
}
