package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

// memoryStore keeps only the per-key delivery high-water mark; the ledger is
// gone when the process exits.
type memoryStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemory() Store {
	return &memoryStore{last: map[string]time.Time{}}
}

func (s *memoryStore) AppendReminder(_ context.Context, e ReminderEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	noteDelivered(s.last, e)
	return nil
}

func (s *memoryStore) LastReminded(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.last[strings.TrimSpace(key)]
	return at, ok, nil
}

func (s *memoryStore) Close() error { return nil }

// noteDelivered advances the per-key high-water mark for delivered entries.
func noteDelivered(last map[string]time.Time, e ReminderEntry) {
	key := strings.TrimSpace(e.Key)
	if key == "" || !e.Delivered() {
		return
	}
	if prev, ok := last[key]; !ok || e.At.After(prev) {
		last[key] = e.At
	}
}
