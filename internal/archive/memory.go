package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/park285/cheese-session/internal/domain"
)

// Memory is used when no database is configured.
type Memory struct {
	mu        sync.RWMutex
	nextID    int64
	byID      map[int64]*domain.ArchivedGame
	bySession map[string]int64
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		byID:      make(map[int64]*domain.ArchivedGame),
		bySession: make(map[string]int64),
	}
}

func (m *Memory) Insert(ctx context.Context, game *domain.ArchivedGame) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySession[game.SessionID]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	cp := *game
	cp.ID = m.nextID
	m.byID[cp.ID] = &cp
	m.bySession[cp.SessionID] = cp.ID
	game.ID = cp.ID
	return cp.ID, nil
}

func (m *Memory) Recent(ctx context.Context, limit int) ([]*domain.ArchivedGame, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	m.mu.RLock()
	all := make([]*domain.ArchivedGame, 0, len(m.byID))
	for _, g := range m.byID {
		cp := *g
		all = append(all, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].EndedAt.Equal(all[j].EndedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].EndedAt.After(all[j].EndedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (*domain.ArchivedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.byID[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *Memory) Close() error { return nil }
