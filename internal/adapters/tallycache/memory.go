package tallycache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/okian/seasonboard/internal/domain/model"
)

// MemoryStore is a bounded in-process Store. Least recently used entries are
// evicted once size is reached; an evicted entry simply reads as absent.
type MemoryStore struct {
	entries *lru.Cache
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store holding at most size tallies.
func NewMemoryStore(size int) (*MemoryStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryStore{entries: c}, nil
}

func (m *MemoryStore) Get(_ context.Context, key Key) (model.VoteTally, bool, error) {
	v, ok := m.entries.Get(key)
	if !ok {
		return model.VoteTally{}, false, nil
	}
	return cloneTally(v.(model.VoteTally)), true, nil
}

func (m *MemoryStore) GetMany(ctx context.Context, season uint64, itemIDs []string) (map[string]model.VoteTally, error) {
	out := make(map[string]model.VoteTally, len(itemIDs))
	for _, id := range itemIDs {
		if t, ok, _ := m.Get(ctx, Key{Season: season, ItemID: id}); ok {
			out[id] = t
		}
	}
	return out, nil
}

func (m *MemoryStore) PutMany(_ context.Context, season uint64, tallies []model.VoteTally) error {
	for _, t := range tallies {
		m.entries.Add(Key{Season: season, ItemID: t.ItemID}, cloneTally(t))
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		drop[id] = struct{}{}
	}
	for _, k := range m.entries.Keys() {
		key, ok := k.(Key)
		if !ok {
			continue
		}
		if _, hit := drop[key.ItemID]; hit {
			m.entries.Remove(key)
		}
	}
	return nil
}

func (m *MemoryStore) Purge(context.Context) error {
	m.entries.Purge()
	return nil
}

func (m *MemoryStore) Len(context.Context) (int, error) {
	return m.entries.Len(), nil
}
