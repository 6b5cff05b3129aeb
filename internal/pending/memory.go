package pending

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps pending entries in process memory. It is the default
// backend for single-instance deployments; multi-instance deployments use
// the Redis backend so any instance can serve the confirm.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	gen     uint64
	closed  bool
}

// gen guards against a timer that fired after losing the Stop race: the
// expiry callback only deletes the entry it was armed for, never a newer
// one stored under the same id.
type memoryEntry struct {
	entry Entry
	timer *time.Timer
	gen   uint64
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Put(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if old, ok := s.entries[e.ID]; ok {
		old.timer.Stop()
	}
	id := e.ID
	s.gen++
	gen := s.gen
	timer := time.AfterFunc(s.ttl, func() { s.expire(id, gen) })
	s.entries[e.ID] = memoryEntry{entry: e, timer: timer, gen: gen}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return me.entry, nil
}

func (s *MemoryStore) Take(_ context.Context, id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	me.timer.Stop()
	delete(s.entries, id)
	return me.entry, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if me, ok := s.entries[id]; ok {
		me.timer.Stop()
		delete(s.entries, id)
	}
	return nil
}

func (s *MemoryStore) expire(id string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if me, ok := s.entries[id]; ok && me.gen == gen {
		delete(s.entries, id)
	}
}

// Len reports the live entry count.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops all expiry timers.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, me := range s.entries {
		me.timer.Stop()
		delete(s.entries, id)
	}
}
