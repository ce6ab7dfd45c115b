// Package roster tracks participant responses to a single session.
package roster

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Status is the response a participant gave to a session.
type Status int

const (
	// StatusUnspecified is the zero value and is never stored.
	StatusUnspecified Status = iota
	// StatusJoining indicates the participant will attend.
	StatusJoining
	// StatusCantMakeIt indicates the participant will not attend.
	StatusCantMakeIt
	// StatusMaybe indicates the participant is undecided.
	StatusMaybe
)

// Statuses lists every valid status in presentation order.
var Statuses = []Status{StatusJoining, StatusCantMakeIt, StatusMaybe}

// ErrInvalidStatus is returned when a status outside the enumeration is supplied.
var ErrInvalidStatus = errors.New("roster: invalid status")

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	return s == StatusJoining || s == StatusCantMakeIt || s == StatusMaybe
}

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusJoining:
		return "joining"
	case StatusCantMakeIt:
		return "cant_make_it"
	case StatusMaybe:
		return "maybe"
	default:
		return "unspecified"
	}
}

// ParseStatus maps a wire name to a Status.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "joining":
		return StatusJoining, nil
	case "cant_make_it":
		return StatusCantMakeIt, nil
	case "maybe":
		return StatusMaybe, nil
	}
	return StatusUnspecified, fmt.Errorf("%w: %q", ErrInvalidStatus, value)
}

type entry struct {
	status Status
	seq    uint64
}

// Roster holds the response of every participant of one session. A participant
// is stored exactly once, so the per-status views can never overlap.
type Roster struct {
	mu      sync.RWMutex
	entries map[string]entry
	seq     uint64
}

// New returns an empty roster.
func New() *Roster {
	return &Roster{entries: make(map[string]entry)}
}

// Respond sets the participant's status, replacing any previous one, and
// returns the roster state right after the change.
func (r *Roster) Respond(participant string, status Status) (Snapshot, error) {
	if !status.Valid() {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrInvalidStatus, int(status))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.entries[participant]; !ok || current.status != status {
		r.seq++
		r.entries[participant] = entry{status: status, seq: r.seq}
	}
	return r.snapshotLocked(), nil
}

// Snapshot returns a consistent copy of the roster.
func (r *Roster) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Roster) snapshotLocked() Snapshot {
	type member struct {
		id  string
		seq uint64
	}
	grouped := make(map[Status][]member, len(Statuses))
	for id, e := range r.entries {
		grouped[e.status] = append(grouped[e.status], member{id: id, seq: e.seq})
	}

	snap := Snapshot{version: r.seq}
	for _, status := range Statuses {
		members := grouped[status]
		sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })
		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.id)
		}
		snap.buckets[bucketIndex(status)] = ids
	}
	return snap
}

// Snapshot is an immutable view of a roster. Members within a status are
// ordered by when they entered that status.
type Snapshot struct {
	buckets [3][]string
	version uint64
}

func bucketIndex(status Status) int {
	return int(status) - 1
}

// Members returns a copy of the participants holding the given status.
func (s Snapshot) Members(status Status) []string {
	if !status.Valid() {
		return nil
	}
	bucket := s.buckets[bucketIndex(status)]
	out := make([]string, len(bucket))
	copy(out, bucket)
	return out
}

// Count returns how many participants hold the given status.
func (s Snapshot) Count(status Status) int {
	if !status.Valid() {
		return 0
	}
	return len(s.buckets[bucketIndex(status)])
}

// Total returns the number of participants that responded.
func (s Snapshot) Total() int {
	total := 0
	for _, bucket := range s.buckets {
		total += len(bucket)
	}
	return total
}

// StatusOf reports the status held by participant, if any.
func (s Snapshot) StatusOf(participant string) (Status, bool) {
	for _, status := range Statuses {
		for _, id := range s.buckets[bucketIndex(status)] {
			if id == participant {
				return status, true
			}
		}
	}
	return StatusUnspecified, false
}

// Version increases every time a response changes the roster.
func (s Snapshot) Version() uint64 {
	return s.version
}
