package compilecache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is a bounded in-process store.
type MemoryStore struct {
	cache *lru.Cache[string, []byte]
}

// NewMemoryStore creates a store holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: c}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.cache.Add(key, data)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int { return s.cache.Len() }
