package training

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"spin-trainer-bot/llm"
	"spin-trainer-bot/scenario"
)

var (
	numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	wordPattern   = regexp.MustCompile(`[\p{L}\p{N}]{4,}`)
)

// stopWords are excluded from the shared-word overlap check.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "was": {}, "this": {}, "that": {},
	"это": {}, "что": {}, "как": {}, "для": {}, "или": {}, "если": {},
	"есть": {}, "было": {}, "быть": {}, "меня": {}, "того": {}, "этой": {},
	"этого": {}, "очень": {}, "может": {}, "когда": {}, "сейчас": {},
}

// Detector decides whether a question demonstrably reuses information from
// the counterpart's previous reply (active listening). Local heuristics run
// first; the inference check is consulted only when they say no, and any
// inference failure silently keeps the heuristic verdict.
type Detector struct {
	gateway Invoker
	sc      *scenario.Scenario
}

// NewDetector creates a detector. gateway may be nil for heuristic-only mode.
func NewDetector(gateway Invoker, sc *scenario.Scenario) *Detector {
	return &Detector{gateway: gateway, sc: sc}
}

// Check reports whether question is contextual with respect to lastReply.
func (d *Detector) Check(ctx context.Context, question, lastReply string) bool {
	if !d.sc.Listening.Enabled || lastReply == "" {
		return false
	}

	if d.checkHeuristic(question, lastReply) {
		return true
	}

	if d.sc.Listening.UseLLM && d.gateway != nil {
		if verdict, ok := d.checkLLM(ctx, question, lastReply); ok {
			return verdict
		}
	}
	return false
}

// checkHeuristic applies the local rules: a verbatim number from the reply,
// a marker phrase, or at least three shared meaningful words.
func (d *Detector) checkHeuristic(question, lastReply string) bool {
	q := strings.ToLower(question)
	reply := strings.ToLower(lastReply)

	for _, num := range numberPattern.FindAllString(reply, -1) {
		if strings.Contains(q, num) {
			slog.Debug("Active listening: number reuse", "number", num)
			return true
		}
	}

	for _, marker := range d.sc.Listening.Markers {
		if strings.Contains(q, strings.ToLower(marker)) {
			slog.Debug("Active listening: marker phrase", "marker", marker)
			return true
		}
	}

	shared := 0
	questionWords := wordSet(q)
	for word := range wordSet(reply) {
		if _, ok := questionWords[word]; ok {
			shared++
		}
	}
	if shared >= 3 {
		slog.Debug("Active listening: word overlap", "shared", shared)
		return true
	}
	return false
}

// checkLLM asks the gateway for a yes/no judgment. The second return value
// is false when the answer is ambiguous or inference failed, meaning the
// heuristic verdict stands.
func (d *Detector) checkLLM(ctx context.Context, question, lastReply string) (bool, bool) {
	prompt := d.sc.Prompt("context_check", map[string]any{
		"last_response": lastReply,
		"question":      question,
	})

	raw, ok := d.gateway.TryInvoke(ctx, llm.KindContext, prompt, "Check context usage")
	if !ok {
		return false, false
	}
	label := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(label, "yes") && !strings.Contains(label, "no"):
		return true, true
	case strings.Contains(label, "no"):
		return false, true
	}
	slog.Debug("Ambiguous context check answer", "answer", raw)
	return false, false
}

// BonusPoints is the clarity bonus for a contextual question.
func (d *Detector) BonusPoints() int {
	return d.sc.Listening.BonusPoints
}

func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(text, -1) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}
