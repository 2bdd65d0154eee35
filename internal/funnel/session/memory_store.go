package session

import (
	"context"
	"sync"
	"time"

	"signup_funnel_backend/internal/funnel/domain"

	"github.com/google/uuid"
)

type memoryEntry struct {
	state     domain.State
	expiresAt time.Time
}

// MemoryStore is a process-local Store used when Redis is not configured.
// Sessions do not survive a restart and are not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	locks   map[uuid.UUID]time.Time
	idleTTL time.Duration
	lockTTL time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(idleTTL, lockTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]memoryEntry),
		locks:   make(map[uuid.UUID]time.Time),
		idleTTL: idleTTL,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, id uuid.UUID) (domain.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return domain.State{}, ErrNotFound
	}
	if s.idleTTL > 0 && !s.now().Before(entry.expiresAt) {
		delete(s.entries, id)
		return domain.State{}, ErrNotFound
	}
	return entry.state, nil
}

func (s *MemoryStore) Save(_ context.Context, state domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state.SessionID] = memoryEntry{state: state, expiresAt: s.now().Add(s.idleTTL)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	delete(s.locks, id)
	return nil
}

func (s *MemoryStore) Lock(_ context.Context, id uuid.UUID) (Unlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, held := s.locks[id]; held && now.Before(until) {
		return nil, ErrBusy
	}
	until := now.Add(s.lockTTL)
	s.locks[id] = until

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.locks[id].Equal(until) {
				delete(s.locks, id)
			}
		})
	}, nil
}
