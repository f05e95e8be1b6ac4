package storage

import (
	"context"
	"sync"
	"time"

	"leadgen/internal/lead"
)

// Memory is an in-process store. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	byKey  map[string]string // identity key -> id
	leads  map[string]lead.Lead
	scores map[string]lead.Analysis
}

func NewMemory() *Memory {
	return &Memory{
		byKey:  map[string]string{},
		leads:  map[string]lead.Lead{},
		scores: map[string]lead.Analysis{},
	}
}

func (m *Memory) Exists(ctx context.Context, identityKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byKey[identityKey]
	return ok, nil
}

func (m *Memory) Put(ctx context.Context, l lead.Lead) (string, error) {
	l.EnsureID()
	if l.CollectedAt.IsZero() {
		l.CollectedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := l.IdentityKey()
	// An identity conflict updates the stored lead in place and keeps
	// its original id.
	if existing, ok := m.byKey[key]; ok {
		l.ID = existing
	}
	m.leads[l.ID] = l
	m.byKey[key] = l.ID
	return l.ID, nil
}

func (m *Memory) AttachAnalysis(ctx context.Context, id string, a lead.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[id]; !ok {
		return ErrNotFound
	}
	m.scores[id] = a
	return nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads), nil
}

func (m *Memory) Close() error { return nil }
