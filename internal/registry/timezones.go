package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/cases"

	"github.com/example/squad-scheduler/internal/persistence"
)

// ErrInvalidTimezone is returned for names that are not IANA zone identifiers.
var ErrInvalidTimezone = errors.New("registry: invalid timezone")

// SearchLimit caps the number of names returned by Timezones.Search.
const SearchLimit = 25

// Timezones maps participants to their IANA timezone name.
type Timezones struct {
	table *table
}

// LoadTimezones builds the registry from the store's timezones namespace.
func LoadTimezones(ctx context.Context, store persistence.KeyValueStore) (*Timezones, error) {
	t, err := loadTable(ctx, store, persistence.NamespaceTimezones)
	if err != nil {
		return nil, err
	}
	return &Timezones{table: t}, nil
}

var knownZones = func() map[string]struct{} {
	set := make(map[string]struct{}, len(zoneNames))
	for _, name := range zoneNames {
		set[name] = struct{}{}
	}
	return set
}()

// ValidateTimezone reports whether name is a recognized IANA zone and returns
// its canonical spelling.
//
// Only catalog names are accepted. LoadLocation alone would also accept host
// zoneinfo files such as posixrules or right/*.
func ValidateTimezone(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if _, ok := knownZones[trimmed]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	if _, err := time.LoadLocation(trimmed); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return trimmed, nil
}

// Set registers tzName for participant, replacing any previous entry.
func (r *Timezones) Set(ctx context.Context, participant, tzName string) error {
	name, err := ValidateTimezone(tzName)
	if err != nil {
		return err
	}
	return r.table.set(ctx, participant, name)
}

// Get returns the participant's timezone, if configured.
func (r *Timezones) Get(participant string) (string, bool) {
	return r.table.get(participant)
}

// Clear removes the participant's entry and reports whether one existed.
func (r *Timezones) Clear(ctx context.Context, participant string) (bool, error) {
	return r.table.delete(ctx, participant)
}

// Len returns the number of configured participants.
func (r *Timezones) Len() int {
	return r.table.len()
}

// Search returns zone names containing query, ignoring case. Names starting
// with the query come first; at most SearchLimit names are returned.
func (r *Timezones) Search(query string) []string {
	// A Caser keeps state between calls, so each search gets its own.
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(query))

	var prefixed, contained []string
	for _, name := range zoneNames {
		folded := fold.String(name)
		switch {
		case needle == "" || strings.HasPrefix(folded, needle):
			prefixed = append(prefixed, name)
		case strings.Contains(folded, needle):
			contained = append(contained, name)
		}
	}
	sort.Strings(prefixed)
	sort.Strings(contained)

	out := append(prefixed, contained...)
	if len(out) > SearchLimit {
		out = out[:SearchLimit]
	}
	return out
}
