package snapshot

import "sync"

// Store holds the currently published snapshot.
type Store struct {
	mu         sync.Mutex
	current    *Snapshot
	generation uint64
}

func NewStore() *Store {
	return &Store{current: Empty()}
}

// Publish replaces the current snapshot as a whole.
func (s *Store) Publish(snap *Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	snap.Generation = s.generation
	s.current = snap
}

// Read returns the published snapshot. Callers must treat it as read-only.
func (s *Store) Read() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
