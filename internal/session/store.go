package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
)

// Store persists authenticated sessions by id.
type Store interface {
	Save(ctx context.Context, s *Authenticated) error
	Load(ctx context.Context, id string) (*Authenticated, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Authenticated
	now   func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Authenticated), now: time.Now}
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, s *Authenticated) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = *s
	return nil
}

// Load returns a copy of the session or ErrSessionNotFound when missing or expired.
func (m *MemoryStore) Load(_ context.Context, id string) (*Authenticated, error) {
	m.mu.RLock()
	s, ok := m.items[id]
	m.mu.RUnlock()
	if !ok || s.Expired(m.now()) {
		return nil, appErrors.ErrSessionNotFound
	}
	return &s, nil
}

// Delete removes the session; deleting an unknown id is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included until swept.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.items {
		if s.Expired(now) {
			delete(m.items, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps on every interval tick until ctx is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(); removed > 0 {
				logger.Debug("expired sessions swept", zap.Int("removed", removed))
			}
		}
	}
}
