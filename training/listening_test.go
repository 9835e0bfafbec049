package training

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"spin-trainer-bot/llm"
)

func TestDetectorHeuristics(t *testing.T) {
	sc := testScenario(t)
	sc.Listening.UseLLM = false
	d := NewDetector(nil, sc)
	ctx := context.Background()

	lastReply := "Мы закупаем упаковку на 500 тысяч рублей ежемесячно, текущий поставщик срывает сроки."

	tests := []struct {
		name     string
		question string
		want     bool
	}{
		{
			name:     "verbatim number reuse",
			question: "Почему именно 500 тысяч, а не больше?",
			want:     true,
		},
		{
			name:     "marker phrase",
			question: "Как вы сказали, поставки задерживаются - насколько часто?",
			want:     true,
		},
		{
			name:     "shared meaningful words",
			question: "Текущий поставщик срывает сроки по упаковке каждый раз?",
			want:     true,
		},
		{
			name:     "unrelated question",
			question: "Какая у вас погода?",
			want:     false,
		},
		{
			name:     "empty question",
			question: "",
			want:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.Check(ctx, tc.question, lastReply))
		})
	}
}

func TestDetectorNoPreviousReply(t *testing.T) {
	sc := testScenario(t)
	d := NewDetector(newFakeInvoker(), sc)

	assert.False(t, d.Check(context.Background(), "Почему именно 500 тысяч?", ""))
}

func TestDetectorDisabled(t *testing.T) {
	sc := testScenario(t)
	sc.Listening.Enabled = false
	d := NewDetector(newFakeInvoker(), sc)

	assert.False(t, d.Check(context.Background(), "как вы сказали, почему?", "ответ про 500 тысяч"))
}

func TestDetectorHeuristicSkipsLLM(t *testing.T) {
	sc := testScenario(t)
	gateway := newFakeInvoker()
	d := NewDetector(gateway, sc)

	got := d.Check(context.Background(), "Почему 500 тысяч?", "Закупаем на 500 тысяч.")
	assert.True(t, got)
	assert.Zero(t, gateway.callCount(llm.KindContext), "heuristic hit must not call the model")
}

func TestDetectorLLMFallback(t *testing.T) {
	sc := testScenario(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{name: "model says yes", answer: "yes", want: true},
		{name: "model says no", answer: "no", want: false},
		{name: "ambiguous answer keeps heuristic verdict", answer: "возможно", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gateway := newFakeInvoker()
			gateway.responses[llm.KindContext] = tc.answer
			d := NewDetector(gateway, sc)

			got := d.Check(ctx, "Совсем другой вопрос про бюджет?", "Краткий ответ клиента о другом.")
			assert.Equal(t, tc.want, got)
			assert.Equal(t, 1, gateway.callCount(llm.KindContext))
		})
	}
}

func TestDetectorInferenceFailureKeepsHeuristicVerdict(t *testing.T) {
	sc := testScenario(t)
	gateway := newFakeInvoker() // no context answer scripted: TryInvoke reports failure

	d := NewDetector(gateway, sc)
	got := d.Check(context.Background(), "Совсем другой вопрос про бюджет?", "Краткий ответ клиента о другом.")
	assert.False(t, got)
	assert.Equal(t, 1, gateway.callCount(llm.KindContext))
}

func TestBonusPoints(t *testing.T) {
	sc := testScenario(t)
	d := NewDetector(nil, sc)
	assert.Equal(t, sc.Listening.BonusPoints, d.BonusPoints())
}
