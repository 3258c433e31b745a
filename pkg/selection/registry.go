// Package selection holds the registry of repositories the user has chosen to
// track on the dashboard. The registry is append-only and de-duplicated by the
// "owner/name" key; no removal operation exists and growth is unbounded for
// the process lifetime, which is a documented limitation of the design.
package selection

import (
	"sync"

	"github.com/spillinova/github-actions-dashboard/pkg/models"
)

// Store is the registry interface. Implementations must make Add's
// check-then-append atomic so concurrent callers cannot insert duplicates.
type Store interface {
	// Add appends {owner,name} unless its key already exists, then returns
	// the full registry contents in insertion order.
	Add(owner, name string) ([]models.SelectionEntry, error)
	// List returns the current registry contents in insertion order.
	List() ([]models.SelectionEntry, error)
}

// Key builds the composite registry key for a repository.
func Key(owner, name string) string {
	return owner + "/" + name
}

// MemoryStore is the default in-process Store. Entries live for the lifetime
// of the process and reset on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries []models.SelectionEntry
	keys    map[string]bool
}

// NewMemoryStore creates an empty in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]bool)}
}

func (s *MemoryStore) Add(owner, name string) ([]models.SelectionEntry, error) {
	key := Key(owner, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.keys[key] {
		s.keys[key] = true
		s.entries = append(s.entries, models.SelectionEntry{
			ID:    key,
			Owner: owner,
			Name:  name,
		})
	}
	return s.snapshot(), nil
}

func (s *MemoryStore) List() ([]models.SelectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// snapshot copies the entries so callers never alias the guarded slice.
// Callers must hold s.mu.
func (s *MemoryStore) snapshot() []models.SelectionEntry {
	out := make([]models.SelectionEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
