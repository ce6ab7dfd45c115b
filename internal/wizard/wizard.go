// Package wizard implements the stepwise date, hour and minute selection used
// to schedule a session at a specific time.
//
// A Wizard is owned by one participant. Steps must be taken in order and the
// wizard expires after a period of inactivity. Expiry is evaluated lazily on
// each call; there is no background timer.
package wizard

import (
	"errors"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"
)

var (
	// ErrInvalidSelection is returned when a value is outside the options of the current step.
	ErrInvalidSelection = errors.New("wizard: invalid selection")
	// ErrWizardExpired is returned once the inactivity timeout has elapsed.
	ErrWizardExpired = errors.New("wizard: expired")
	// ErrWizardNotActive is returned when the wizard does not accept the requested step.
	ErrWizardNotActive = errors.New("wizard: not active")
	// ErrTimezoneNotConfigured is returned when the owner has no registered timezone.
	ErrTimezoneNotConfigured = errors.New("wizard: timezone not configured")
)

// DefaultTimeout is the inactivity window after which a wizard expires.
const DefaultTimeout = 60 * time.Second

// CandidateDays is the number of dates offered, starting with today.
const CandidateDays = 5

// MinuteOffsets lists the accepted minute selections.
var MinuteOffsets = []int{0, 30}

// State identifies the step a wizard is waiting for.
type State int

// The happy path runs AwaitingDate, AwaitingHour, AwaitingMinute, Completed.
// Expired and Cancelled are reachable from any non-terminal state.
const (
	StateAwaitingDate State = iota
	StateAwaitingHour
	StateAwaitingMinute
	StateCompleted
	StateExpired
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAwaitingDate:
		return "awaiting_date"
	case StateAwaitingHour:
		return "awaiting_hour"
	case StateAwaitingMinute:
		return "awaiting_minute"
	case StateCompleted:
		return "completed"
	case StateExpired:
		return "expired"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateExpired || s == StateCancelled
}

// TimezoneLookup resolves a participant's registered IANA timezone name.
type TimezoneLookup interface {
	Get(participant string) (string, bool)
}

// Options configures a new wizard.
type Options struct {
	Now       func() time.Time
	Timeout   time.Duration
	Timezones TimezoneLookup
}

// Wizard accumulates a date, an hour and a minute offset and resolves them to
// a UTC instant in the owner's timezone.
type Wizard struct {
	mu sync.Mutex

	owner      string
	now        func() time.Time
	timeout    time.Duration
	timezones  TimezoneLookup
	candidates []Date

	state          State
	date           *Date
	hour           *int
	minute         *int
	result         time.Time
	resultTaken    bool
	lastActivityAt time.Time
}

// New constructs a wizard for owner. Candidate dates are computed from the
// current UTC calendar day.
func New(owner string, opts Options) *Wizard {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	created := now()
	return &Wizard{
		owner:          owner,
		now:            now,
		timeout:        timeout,
		timezones:      opts.Timezones,
		candidates:     CandidateDates(created, CandidateDays),
		state:          StateAwaitingDate,
		lastActivityAt: created,
	}
}

// CandidateDates returns count consecutive UTC calendar dates starting at ref.
func CandidateDates(ref time.Time, count int) []Date {
	start := DateOf(ref.UTC())
	out := make([]Date, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, start.AddDays(i))
	}
	return out
}

// Owner returns the participant driving the wizard.
func (w *Wizard) Owner() string {
	return w.owner
}

// Candidates returns the dates accepted by SelectDate.
func (w *Wizard) Candidates() []Date {
	out := make([]Date, len(w.candidates))
	copy(out, w.candidates)
	return out
}

// SelectDate records the session date.
func (w *Wizard) SelectDate(d Date) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.beginStepLocked(StateAwaitingDate); err != nil {
		return err
	}
	return w.selectDateLocked(d)
}

// SelectDateString parses value as YYYY-MM-DD and records it as the session
// date. The wizard state is checked before the value is parsed.
func (w *Wizard) SelectDateString(value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.beginStepLocked(StateAwaitingDate); err != nil {
		return err
	}
	d, err := ParseDate(value)
	if err != nil {
		return err
	}
	return w.selectDateLocked(d)
}

func (w *Wizard) selectDateLocked(d Date) error {
	if !w.isCandidateLocked(d) {
		return fmt.Errorf("%w: date %s is not offered", ErrInvalidSelection, d)
	}
	w.date = &d
	w.state = StateAwaitingHour
	return nil
}

// SelectHour records the hour of day, 0 through 23.
func (w *Wizard) SelectHour(hour int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.beginStepLocked(StateAwaitingHour); err != nil {
		return err
	}
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidSelection, hour)
	}

	w.hour = &hour
	w.state = StateAwaitingMinute
	return nil
}

// SelectMinute records the minute offset and resolves the final instant. When
// the owner has no timezone the wizard stays on this step so the call can be
// retried.
func (w *Wizard) SelectMinute(minute int) (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.beginStepLocked(StateAwaitingMinute); err != nil {
		return time.Time{}, err
	}
	if !validMinute(minute) {
		return time.Time{}, fmt.Errorf("%w: minute %d not allowed", ErrInvalidSelection, minute)
	}

	loc, err := w.ownerLocationLocked()
	if err != nil {
		return time.Time{}, err
	}

	d := *w.date
	w.minute = &minute
	w.result = time.Date(d.Year, d.Month, d.Day, *w.hour, minute, 0, 0, loc).UTC()
	w.state = StateCompleted
	return w.result, nil
}

// Cancel aborts the wizard and discards partial selections. Cancelling a
// wizard that already reached a terminal state leaves that state untouched.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expireLocked()
	if w.state.Terminal() {
		return
	}
	w.state = StateCancelled
	w.date, w.hour, w.minute = nil, nil, nil
}

// CheckExpiry evaluates the inactivity timeout and returns the resulting state.
func (w *Wizard) CheckExpiry() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expireLocked()
	return w.state
}

// State returns the current state after evaluating the timeout.
func (w *Wizard) State() State {
	return w.CheckExpiry()
}

// TakeResult hands out the resolved instant. It succeeds once per completed
// wizard; later calls fail with ErrWizardNotActive.
func (w *Wizard) TakeResult() (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateCompleted {
		return time.Time{}, fmt.Errorf("%w: state is %s", ErrWizardNotActive, w.state)
	}
	if w.resultTaken {
		return time.Time{}, fmt.Errorf("%w: result already consumed", ErrWizardNotActive)
	}
	w.resultTaken = true
	return w.result, nil
}

// Snapshot describes the wizard for presentation.
type Snapshot struct {
	Owner          string
	State          State
	Candidates     []Date
	Date           *Date
	Hour           *int
	Minute         *int
	Result         *time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
}

// Snapshot returns a copy of the wizard state.
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expireLocked()

	snap := Snapshot{
		Owner:          w.owner,
		State:          w.state,
		Candidates:     w.Candidates(),
		LastActivityAt: w.lastActivityAt,
		ExpiresAt:      w.lastActivityAt.Add(w.timeout),
	}
	if w.date != nil {
		d := *w.date
		snap.Date = &d
	}
	if w.hour != nil {
		h := *w.hour
		snap.Hour = &h
	}
	if w.minute != nil {
		m := *w.minute
		snap.Minute = &m
	}
	if w.state == StateCompleted {
		r := w.result
		snap.Result = &r
	}
	return snap
}

// beginStepLocked validates that the wizard is live and waiting for want. A
// live wizard records the interaction even if the value is later rejected.
func (w *Wizard) beginStepLocked(want State) error {
	w.expireLocked()
	switch w.state {
	case StateExpired:
		return ErrWizardExpired
	case StateCompleted, StateCancelled:
		return fmt.Errorf("%w: state is %s", ErrWizardNotActive, w.state)
	}
	w.lastActivityAt = w.now()
	if w.state != want {
		return fmt.Errorf("%w: expected %s, state is %s", ErrWizardNotActive, want, w.state)
	}
	return nil
}

func (w *Wizard) expireLocked() {
	if w.state.Terminal() {
		return
	}
	if w.now().Sub(w.lastActivityAt) >= w.timeout {
		w.state = StateExpired
	}
}

func (w *Wizard) isCandidateLocked(d Date) bool {
	for _, c := range w.candidates {
		if c == d {
			return true
		}
	}
	return false
}

func (w *Wizard) ownerLocationLocked() (*time.Location, error) {
	if w.timezones == nil {
		return nil, ErrTimezoneNotConfigured
	}
	name, ok := w.timezones.Get(w.owner)
	if !ok || name == "" {
		return nil, ErrTimezoneNotConfigured
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: load %q: %v", ErrTimezoneNotConfigured, name, err)
	}
	return loc, nil
}

func validMinute(minute int) bool {
	for _, m := range MinuteOffsets {
		if m == minute {
			return true
		}
	}
	return false
}
