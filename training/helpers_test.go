package training

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"spin-trainer-bot/llm"
)

// fakeInvoker scripts gateway answers per call kind and records prompts.
type fakeInvoker struct {
	mu        sync.Mutex
	responses map[llm.Kind]string
	streams   map[llm.Kind][]string
	streamErr error
	calls     map[llm.Kind]int
	prompts   []string
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		responses: make(map[llm.Kind]string),
		streams:   make(map[llm.Kind][]string),
		calls:     make(map[llm.Kind]int),
	}
}

func (f *fakeInvoker) Invoke(ctx context.Context, kind llm.Kind, systemPrompt, userMessage string) string {
	text, ok := f.TryInvoke(ctx, kind, systemPrompt, userMessage)
	if !ok {
		return llm.DefaultFailureText
	}
	return text
}

func (f *fakeInvoker) TryInvoke(_ context.Context, kind llm.Kind, systemPrompt, _ string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	f.prompts = append(f.prompts, systemPrompt)
	text, ok := f.responses[kind]
	return text, ok
}

func (f *fakeInvoker) InvokeStreaming(_ context.Context, kind llm.Kind, _, _ string) (<-chan string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	deltas, ok := f.streams[kind]
	if !ok {
		return nil, errors.New("no stream scripted")
	}
	ch := make(chan string, len(deltas))
	for _, d := range deltas {
		ch <- d
	}
	close(ch)
	return ch, nil
}

func (f *fakeInvoker) callCount(kind llm.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

// fakeStore is an in-memory Store with an error switch for persistence
// failure paths. Values round-trip through JSON like the real store.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[int64][]byte
	stats    map[int64][]byte
	records  []Record
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[int64][]byte),
		stats:    make(map[int64][]byte),
	}
}

func (f *fakeStore) GetUser(_ context.Context, userID int64) (*Session, *Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.sessions[userID]
	if !ok {
		return nil, nil, nil
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, nil, err
	}
	var stats Stats
	if err := json.Unmarshal(f.stats[userID], &stats); err != nil {
		return nil, nil, err
	}
	return &session, &stats, nil
}

func (f *fakeStore) SaveUser(_ context.Context, userID int64, session *Session, stats *Stats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return err
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	f.sessions[userID] = sessionJSON
	f.stats[userID] = statsJSON
	return nil
}

func (f *fakeStore) AppendTraining(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) RecentTrainings(_ context.Context, userID int64, limit int) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}
