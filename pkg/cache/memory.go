package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is an in-process EntryStore bounded by an LRU capacity and an
// absolute TTL. Expired entries are dropped lazily on Get.
type MemoryStore struct {
	mu  sync.Mutex
	lru *lru.Cache[string, *Entry]
	ttl time.Duration
}

// NewMemoryStore creates a memory-backed store. onEvict, if non-nil, is
// called with the ID of every entry removed by capacity pressure or expiry
// so the owner can clean up the companion vector index.
func NewMemoryStore(capacity int, ttl time.Duration, onEvict func(id string)) (*MemoryStore, error) {
	var cb func(string, *Entry)
	if onEvict != nil {
		cb = func(id string, _ *Entry) {
			onEvict(id)
		}
	}

	c, err := lru.NewWithEvict[string, *Entry](capacity, cb)
	if err != nil {
		return nil, err
	}

	return &MemoryStore{
		lru: c,
		ttl: ttl,
	}, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lru.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	if s.expired(entry) {
		s.lru.Remove(id)
		return nil, ErrNotFound
	}

	cp := *entry
	return &cp, nil
}

func (s *MemoryStore) Put(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.lru.Add(entry.ID, &cp)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Remove(id)
	return nil
}

func (s *MemoryStore) Touch(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lru.Get(id)
	if !ok {
		return 0, ErrNotFound
	}
	if s.expired(entry) {
		s.lru.Remove(id)
		return 0, ErrNotFound
	}

	entry.HitCount++
	return entry.HitCount, nil
}

// Len returns the number of resident entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Purge()
	return nil
}

func (s *MemoryStore) expired(entry *Entry) bool {
	return s.ttl > 0 && time.Since(entry.CreatedAt) > s.ttl
}

// Ensure MemoryStore implements EntryStore.
var _ EntryStore = (*MemoryStore)(nil)
