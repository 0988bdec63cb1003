package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"IceStock/internal/model"
)

// MemoryRepository keeps everything in process memory. It is used when no
// SQLite path is configured and in tests.
type MemoryRepository struct {
	mu          sync.Mutex
	stores      []model.Store
	suggestions []model.SuggestionRecord
	now         func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (m *MemoryRepository) CreateStore(_ context.Context, s *model.Store) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.ID = int64(len(m.stores) + 1)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now().UTC()
	}
	m.stores = append(m.stores, cloneStore(*s))
	return s.ID, nil
}

func (m *MemoryRepository) GetStore(_ context.Context, id int64) (*model.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.stores {
		if s.ID == id {
			c := cloneStore(s)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("store %d: %w", id, ErrNotFound)
}

func (m *MemoryRepository) ListStores(_ context.Context) ([]model.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Store, 0, len(m.stores))
	for _, s := range m.stores {
		out = append(out, cloneStore(s))
	}
	return out, nil
}

func (m *MemoryRepository) SaveSuggestion(_ context.Context, rec *model.SuggestionRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = int64(len(m.suggestions) + 1)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now().UTC()
	}
	c := *rec
	c.StoreName = ""
	if rec.Suggestion.Items != nil {
		c.Suggestion.Items = append(make([]model.LineItem, 0, len(rec.Suggestion.Items)), rec.Suggestion.Items...)
	}
	m.suggestions = append(m.suggestions, c)
	return rec.ID, nil
}

func (m *MemoryRepository) ListSuggestions(_ context.Context) ([]model.SuggestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make(map[int64]string, len(m.stores))
	for _, s := range m.stores {
		names[s.ID] = s.Name
	}
	out := make([]model.SuggestionRecord, 0, len(m.suggestions))
	for _, rec := range m.suggestions {
		name, ok := names[rec.StoreID]
		if !ok {
			continue // inner join
		}
		rec.StoreName = name
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryRepository) Close() error { return nil }

func cloneStore(s model.Store) model.Store {
	if s.BaseDemand != nil {
		s.BaseDemand = append(make(model.Baseline, 0, len(s.BaseDemand)), s.BaseDemand...)
	}
	return s
}
