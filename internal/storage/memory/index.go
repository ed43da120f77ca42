package memory

import (
	"sync"

	"github.com/yndnr/attendmesh/pkg/cmap"
)

// IDSet is a concurrent-safe set of record IDs.
type IDSet struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// NewIDSet creates a new ID set.
func NewIDSet() *IDSet {
	return &IDSet{
		items: make(map[string]struct{}),
	}
}

// Add adds an ID to the set.
func (s *IDSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = struct{}{}
}

// Remove removes an ID from the set.
func (s *IDSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Contains checks if an ID is in the set.
func (s *IDSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Len returns the number of items in the set.
func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of all IDs.
func (s *IDSet) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]string, 0, len(s.items))
	for id := range s.items {
		items = append(items, id)
	}
	return items
}

// UserIndex maps a UserID to the set of record IDs the user owns.
// The store keeps one for attendances and one for tokens.
type UserIndex struct {
	index *cmap.Map[string, *IDSet]
}

// NewUserIndex creates a new user index.
func NewUserIndex() *UserIndex {
	return &UserIndex{
		index: cmap.New[string, *IDSet](),
	}
}

// Add adds a record to the user's set.
func (i *UserIndex) Add(userID, id string) {
	set, _ := i.index.GetOrSet(userID, NewIDSet())
	set.Add(id)
}

// Remove removes a record from the user's set.
func (i *UserIndex) Remove(userID, id string) {
	set, ok := i.index.Get(userID)
	if !ok {
		return
	}

	set.Remove(id)

	// Clean up empty sets
	if set.Len() == 0 {
		i.index.Delete(userID)
	}
}

// Get returns all record IDs of a user.
func (i *UserIndex) Get(userID string) []string {
	set, ok := i.index.Get(userID)
	if !ok {
		return nil
	}
	return set.Items()
}

// Count returns the number of records of a user.
func (i *UserIndex) Count(userID string) int {
	set, ok := i.index.Get(userID)
	if !ok {
		return 0
	}
	return set.Len()
}

// Clear drops every record of a user from the index.
func (i *UserIndex) Clear(userID string) {
	i.index.Delete(userID)
}
