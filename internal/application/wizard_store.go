package application

import (
	"sync"
	"time"

	"github.com/example/squad-scheduler/internal/wizard"
)

// wizardStore tracks in-flight wizards by handle. Wizards that reached a
// terminal state are retired on sweep and remembered for a while so late
// clicks still get a precise answer instead of "not found".
type wizardStore struct {
	mu        sync.RWMutex
	now       func() time.Time
	retention time.Duration
	entries   map[string]*wizardEntry
	retired   map[string]retiredWizard
}

type wizardEntry struct {
	id      string
	groupID string
	wizard  *wizard.Wizard
}

type retiredWizard struct {
	owner     string
	state     wizard.State
	expiresAt time.Time
}

func newWizardStore(retention time.Duration, now func() time.Time) *wizardStore {
	if retention <= 0 {
		retention = 10 * wizard.DefaultTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &wizardStore{
		now:       now,
		retention: retention,
		entries:   make(map[string]*wizardEntry),
		retired:   make(map[string]retiredWizard),
	}
}

func (s *wizardStore) Put(entry *wizardEntry) {
	s.mu.Lock()
	s.entries[entry.id] = entry
	s.mu.Unlock()
}

// Get returns the live entry for id. For a retired id it returns the state the
// wizard ended in.
func (s *wizardStore) Get(id string) (*wizardEntry, *retiredWizard) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[id]; ok {
		return entry, nil
	}
	if r, ok := s.retired[id]; ok {
		return nil, &r
	}
	return nil, nil
}

func (s *wizardStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep retires wizards in a terminal state and forgets retired handles past
// their retention. It returns the number of wizards retired.
func (s *wizardStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	retired := 0
	for id, entry := range s.entries {
		state := entry.wizard.CheckExpiry()
		if !state.Terminal() {
			continue
		}
		s.retired[id] = retiredWizard{
			owner:     entry.wizard.Owner(),
			state:     state,
			expiresAt: now.Add(s.retention),
		}
		delete(s.entries, id)
		retired++
	}
	for id, r := range s.retired {
		if now.After(r.expiresAt) {
			delete(s.retired, id)
		}
	}
	return retired
}
