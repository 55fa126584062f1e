package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/johnwmail/npaste/models"
)

// MemoryStore keeps pastes in process memory. Used for tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	pastes map[string]*models.Paste
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pastes: make(map[string]*models.Paste)}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Create(ctx context.Context, paste *models.Paste) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pastes[paste.ID]; ok {
		return ErrDuplicateID
	}
	m.pastes[paste.ID] = paste.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pastes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pastes[id]
	return ok, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*models.Paste, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]*models.Paste, 0, len(m.pastes))
	for _, p := range m.pastes {
		out = append(out, p.Clone())
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pastes[id]; !ok {
		return ErrNotFound
	}
	delete(m.pastes, id)
	return nil
}

func (m *MemoryStore) RecordView(ctx context.Context, id string, now time.Time) (*models.Paste, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pastes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !p.IsAvailable(now) {
		return nil, ErrUnavailable
	}
	p.ViewsCount++
	return p.Clone(), nil
}

func (m *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, p := range m.pastes {
		if p.IsExpired(now) {
			delete(m.pastes, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func sortNewestFirst(pastes []*models.Paste) {
	sort.SliceStable(pastes, func(i, j int) bool {
		if pastes[i].CreatedAt.Equal(pastes[j].CreatedAt) {
			return pastes[i].ID < pastes[j].ID
		}
		return pastes[i].CreatedAt.After(pastes[j].CreatedAt)
	})
}
