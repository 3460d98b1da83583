package cache

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const shardCount = 32

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

type memoryList struct {
	items     [][]byte
	expiresAt time.Time
}

type shard struct {
	mu    sync.Mutex
	items map[string]memoryItem
	lists map[string]memoryList
}

// MemoryStore is a process-local Store. Keys are spread over independently locked shards
// so writers for unrelated users never contend on one mutex.
type MemoryStore struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// NewMemoryStore builds an empty store. now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	s := &MemoryStore{now: now}
	for i := range s.shards {
		s.shards[i] = &shard{
			items: make(map[string]memoryItem),
			lists: make(map[string]memoryList),
		}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// live returns the item under key, dropping it when expired. Caller holds sh.mu.
func (s *MemoryStore) live(sh *shard, key string) (memoryItem, bool) {
	item, ok := sh.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !s.now().Before(item.expiresAt) {
		delete(sh.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	item, ok := s.live(sh, key)
	if !ok {
		return nil, ErrMiss
	}
	e := copyEntry(item.entry)
	return &e, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, e Entry, ttl time.Duration) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.items[key] = memoryItem{entry: copyEntry(e), expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) SwapIfNewer(_ context.Context, key string, e Entry, ttl time.Duration) (*Entry, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var prev *Entry
	if item, ok := s.live(sh, key); ok {
		p := copyEntry(item.entry)
		prev = &p
		if item.entry.Timestamp > e.Timestamp {
			return prev, false, nil
		}
	}

	sh.items[key] = memoryItem{entry: copyEntry(e), expiresAt: s.now().Add(ttl)}
	return prev, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.items, key)
	delete(sh.lists, key)
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sh.mu.Lock()
		for key := range sh.items {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			if _, ok := s.live(sh, key); ok {
				keys = append(keys, key)
			}
		}
		sh.mu.Unlock()
	}
	return keys, nil
}

func (s *MemoryStore) Push(_ context.Context, key string, data []byte, ttl time.Duration) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l := sh.lists[key]
	if !s.now().Before(l.expiresAt) {
		l.items = nil
	}
	item := append([]byte(nil), data...)
	l.items = append([][]byte{item}, l.items...)
	l.expiresAt = s.now().Add(ttl)
	sh.lists[key] = l
	return nil
}

func (s *MemoryStore) Range(_ context.Context, key string, limit int) ([][]byte, error) {
	if limit <= 0 {
		return nil, nil
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, ok := sh.lists[key]
	if !ok || !s.now().Before(l.expiresAt) {
		delete(sh.lists, key)
		return nil, nil
	}
	if limit > len(l.items) {
		limit = len(l.items)
	}
	out := make([][]byte, 0, limit)
	for _, item := range l.items[:limit] {
		out = append(out, append([]byte(nil), item...))
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyEntry(e Entry) Entry {
	return Entry{Timestamp: e.Timestamp, Data: append([]byte(nil), e.Data...)}
}
