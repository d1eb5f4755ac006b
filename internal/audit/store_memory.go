package audit

import (
	"context"
	"slices"
	"sync"
)

// DefaultRetention is how many events the in-memory store keeps per subject.
const DefaultRetention = 512

// InMemoryStore keeps the most recent events of each subject in arrival
// order. Older events are dropped once a subject exceeds its retention.
type InMemoryStore struct {
	retention int

	mu     sync.RWMutex
	events map[string][]Event
}

type MemoryOption func(*InMemoryStore)

// WithRetention caps events kept per subject. Non-positive values keep the
// default.
func WithRetention(n int) MemoryOption {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.retention = n
		}
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{retention: DefaultRetention, events: make(map[string][]Event)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := append(s.events[event.SubjectID], event)
	if over := len(evs) - s.retention; over > 0 {
		evs = slices.Delete(evs, 0, over)
	}
	s.events[event.SubjectID] = evs
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events[subjectID]), nil
}
