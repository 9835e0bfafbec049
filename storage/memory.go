package storage

import (
	"context"
	"encoding/json"
	"sync"

	"spin-trainer-bot/training"
)

// MemoryStore is an in-memory store used in tests and for running without a
// database file. Values are copied through JSON so callers never share
// pointers with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64][]byte
	stats    map[int64][]byte
	records  []training.Record
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64][]byte),
		stats:    make(map[int64][]byte),
	}
}

func (m *MemoryStore) GetUser(_ context.Context, userID int64) (*training.Session, *training.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessionJSON, ok := m.sessions[userID]
	if !ok {
		return nil, nil, nil
	}
	var session training.Session
	if err := json.Unmarshal(sessionJSON, &session); err != nil {
		return nil, nil, err
	}
	var stats training.Stats
	if err := json.Unmarshal(m.stats[userID], &stats); err != nil {
		return nil, nil, err
	}
	return &session, &stats, nil
}

func (m *MemoryStore) SaveUser(_ context.Context, userID int64, session *training.Session, stats *training.Stats) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return err
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = sessionJSON
	m.stats[userID] = statsJSON
	return nil
}

func (m *MemoryStore) AppendTraining(_ context.Context, rec training.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) RecentTrainings(_ context.Context, userID int64, limit int) ([]training.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []training.Record
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].UserID == userID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

// Trainings returns a copy of all appended records.
func (m *MemoryStore) Trainings() []training.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]training.Record, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MemoryStore) Close() error { return nil }
