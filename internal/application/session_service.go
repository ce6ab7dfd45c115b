package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/squad-scheduler/internal/registry"
	"github.com/example/squad-scheduler/internal/roster"
	"github.com/example/squad-scheduler/internal/wizard"
)

// Gatekeeper decides whether a scheduling command may run in a group.
type Gatekeeper interface {
	Check(group string, command registry.Command) error
}

// RoleDirectory resolves a group's ping role.
type RoleDirectory interface {
	Role(group string) (string, bool)
}

// SessionService composes the gate, the scheduling wizard and the roster. It
// is the only entry point transports use to create and answer sessions.
type SessionService struct {
	gate          Gatekeeper
	timezones     wizard.TimezoneLookup
	roles         RoleDirectory
	idGenerator   func() string
	now           func() time.Time
	wizardTimeout time.Duration
	retention     time.Duration
	logger        *slog.Logger

	wizards *wizardStore

	mu       sync.RWMutex
	sessions map[string]*Session
}

// DefaultSessionRetention bounds how long sessions stay addressable after
// their start (or creation, for tonight sessions).
const DefaultSessionRetention = 72 * time.Hour

// NewSessionService constructs a session service with the provided dependencies.
func NewSessionService(gate Gatekeeper, timezones wizard.TimezoneLookup, roles RoleDirectory, idGenerator func() string, now func() time.Time) *SessionService {
	return NewSessionServiceWithLogger(gate, timezones, roles, idGenerator, now, 0, 0, nil)
}

// NewSessionServiceWithLogger constructs a session service with explicit
// timeouts and logger. Zero durations select the defaults.
func NewSessionServiceWithLogger(gate Gatekeeper, timezones wizard.TimezoneLookup, roles RoleDirectory, idGenerator func() string, now func() time.Time, wizardTimeout, retention time.Duration, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if wizardTimeout <= 0 {
		wizardTimeout = wizard.DefaultTimeout
	}
	if retention <= 0 {
		retention = DefaultSessionRetention
	}
	return &SessionService{
		gate:          gate,
		timezones:     timezones,
		roles:         roles,
		idGenerator:   idGenerator,
		now:           now,
		wizardTimeout: wizardTimeout,
		retention:     retention,
		logger:        defaultLogger(logger),
		wizards:       newWizardStore(10*wizardTimeout, now),
		sessions:      make(map[string]*Session),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// CreateTonight starts a session without a fixed time.
func (s *SessionService) CreateTonight(ctx context.Context, params CreateSessionParams) (session Session, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "CreateTonight",
		"principal_id", principal.UserID,
		"group_id", principal.GroupID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create tonight session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "tonight session created")
	}()

	if err = s.checkGate(principal, registry.CommandTonight); err != nil {
		return
	}

	session = s.createSession(principal.GroupID, principal.UserID, nil)
	return
}

// BeginSpecificScheduling starts a wizard owned by the principal.
func (s *SessionService) BeginSpecificScheduling(ctx context.Context, params CreateSessionParams) (view WizardView, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "BeginSpecificScheduling",
		"principal_id", principal.UserID,
		"group_id", principal.GroupID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to begin scheduling", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("wizard_id", view.ID).InfoContext(ctx, "scheduling wizard started")
	}()

	if err = s.checkGate(principal, registry.CommandSpecific); err != nil {
		return
	}

	entry := &wizardEntry{
		id:      s.idGenerator(),
		groupID: principal.GroupID,
		wizard: wizard.New(principal.UserID, wizard.Options{
			Now:       s.now,
			Timeout:   s.wizardTimeout,
			Timezones: s.timezones,
		}),
	}
	s.wizards.Put(entry)

	view = entry.view()
	return
}

// GetWizard returns the current state of a wizard owned by the principal.
func (s *SessionService) GetWizard(ctx context.Context, params WizardParams) (WizardView, error) {
	entry, err := s.ownedWizard(params)
	if err != nil {
		return WizardView{}, err
	}
	return entry.view(), nil
}

// SelectDate applies the date step. date uses the YYYY-MM-DD layout.
func (s *SessionService) SelectDate(ctx context.Context, params SelectDateParams) (view WizardView, err error) {
	logger := s.loggerWith(ctx, "SelectDate", "principal_id", params.Principal.UserID, "wizard_id", params.WizardID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "date selection rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var entry *wizardEntry
	if entry, err = s.ownedWizard(params.WizardParams); err != nil {
		return
	}
	if err = entry.wizard.SelectDateString(params.Date); err != nil {
		return
	}
	view = entry.view()
	return
}

// SelectHour applies the hour step.
func (s *SessionService) SelectHour(ctx context.Context, params SelectHourParams) (view WizardView, err error) {
	logger := s.loggerWith(ctx, "SelectHour", "principal_id", params.Principal.UserID, "wizard_id", params.WizardID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "hour selection rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var entry *wizardEntry
	if entry, err = s.ownedWizard(params.WizardParams); err != nil {
		return
	}
	if err = entry.wizard.SelectHour(params.Hour); err != nil {
		return
	}
	view = entry.view()
	return
}

// SelectMinute applies the final step and, once the wizard completes, creates
// the session at the resolved instant.
func (s *SessionService) SelectMinute(ctx context.Context, params SelectMinuteParams) (session Session, err error) {
	logger := s.loggerWith(ctx, "SelectMinute", "principal_id", params.Principal.UserID, "wizard_id", params.WizardID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "minute selection rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "scheduled session created",
			"scheduled_at", session.ScheduledAt.Unix(),
		)
	}()

	var entry *wizardEntry
	if entry, err = s.ownedWizard(params.WizardParams); err != nil {
		return
	}
	if _, err = entry.wizard.SelectMinute(params.Minute); err != nil {
		return
	}
	return s.finalize(entry)
}

// CancelWizard aborts a wizard owned by the principal.
func (s *SessionService) CancelWizard(ctx context.Context, params WizardParams) (WizardView, error) {
	entry, err := s.ownedWizard(params)
	if err != nil {
		return WizardView{}, err
	}
	entry.wizard.Cancel()
	s.loggerWith(ctx, "CancelWizard", "principal_id", params.Principal.UserID, "wizard_id", params.WizardID).
		InfoContext(ctx, "scheduling wizard cancelled")
	return entry.view(), nil
}

// FinalizeScheduling turns a completed wizard into a session. Calling it for a
// wizard that has not completed is a programming error and panics. A second
// call for the same wizard fails with wizard.ErrWizardNotActive.
func (s *SessionService) FinalizeScheduling(ctx context.Context, wizardID string) (Session, error) {
	entry, retired := s.wizards.Get(wizardID)
	if entry == nil {
		if retired != nil && retired.state == wizard.StateCompleted {
			return Session{}, fmt.Errorf("%w: result already consumed", wizard.ErrWizardNotActive)
		}
		return Session{}, ErrNotFound
	}
	return s.finalize(entry)
}

func (s *SessionService) finalize(entry *wizardEntry) (Session, error) {
	if state := entry.wizard.State(); state != wizard.StateCompleted {
		panic(fmt.Sprintf("application: finalize called for wizard %s in state %s", entry.id, state))
	}
	scheduledAt, err := entry.wizard.TakeResult()
	if err != nil {
		return Session{}, err
	}
	return s.createSession(entry.groupID, entry.wizard.Owner(), &scheduledAt), nil
}

// Respond records the principal's RSVP for a session.
func (s *SessionService) Respond(ctx context.Context, params RespondParams) (view SessionView, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Respond",
		"principal_id", params.Principal.UserID,
		"session_id", params.SessionID,
		"status", params.Status.String(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record response", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "response recorded",
			"joining", view.Snapshot.Count(roster.StatusJoining),
			"cant_make_it", view.Snapshot.Count(roster.StatusCantMakeIt),
			"maybe", view.Snapshot.Count(roster.StatusMaybe),
		)
	}()

	if err = requireParticipant(params.Principal); err != nil {
		return
	}

	var session Session
	if session, err = s.lookupSession(params.Principal, params.SessionID); err != nil {
		return
	}

	var snap roster.Snapshot
	if snap, err = session.Roster.Respond(params.Principal.UserID, params.Status); err != nil {
		return
	}
	view = SessionView{Session: session, Snapshot: snap}
	return
}

// GetSession returns a session and a snapshot of its roster.
func (s *SessionService) GetSession(ctx context.Context, principal Principal, sessionID string) (SessionView, error) {
	session, err := s.lookupSession(principal, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{Session: session, Snapshot: session.Roster.Snapshot()}, nil
}

// Sweep retires finished wizards and forgets sessions past retention.
func (s *SessionService) Sweep(ctx context.Context) (wizards, sessions int) {
	wizards = s.wizards.Sweep()

	cutoff := s.now().Add(-s.retention)
	s.mu.Lock()
	for id, session := range s.sessions {
		reference := session.CreatedAt
		if session.ScheduledAt != nil {
			reference = *session.ScheduledAt
		}
		if reference.Before(cutoff) {
			delete(s.sessions, id)
			sessions++
		}
	}
	s.mu.Unlock()

	if wizards > 0 || sessions > 0 {
		s.loggerWith(ctx, "Sweep").DebugContext(ctx, "sweep completed",
			"wizards_retired", wizards,
			"sessions_forgotten", sessions,
		)
	}
	return wizards, sessions
}

// ActiveWizards returns the number of wizards awaiting input or sweep.
func (s *SessionService) ActiveWizards() int {
	return s.wizards.Len()
}

func (s *SessionService) checkGate(principal Principal, command registry.Command) error {
	if err := requireGroup(principal); err != nil {
		return err
	}
	if s.gate == nil {
		return nil
	}
	return s.gate.Check(principal.GroupID, command)
}

func (s *SessionService) createSession(groupID, organizerID string, scheduledAt *time.Time) Session {
	session := &Session{
		ID:          s.idGenerator(),
		GroupID:     groupID,
		OrganizerID: organizerID,
		CreatedAt:   s.now().UTC(),
		Roster:      roster.New(),
	}
	if scheduledAt != nil {
		at := scheduledAt.UTC()
		session.ScheduledAt = &at
	}
	if s.roles != nil {
		if role, ok := s.roles.Role(groupID); ok {
			session.PingRoleID = role
		}
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session.clone()
}

func (s *SessionService) lookupSession(principal Principal, sessionID string) (Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	if principal.GroupID != "" && principal.GroupID != session.GroupID {
		return Session{}, ErrNotFound
	}
	return session.clone(), nil
}

func (s *SessionService) ownedWizard(params WizardParams) (*wizardEntry, error) {
	if s == nil {
		return nil, errors.New("SessionService is nil")
	}
	entry, retired := s.wizards.Get(params.WizardID)
	switch {
	case entry != nil:
		if entry.wizard.Owner() != params.Principal.UserID {
			return nil, ErrUnauthorized
		}
		return entry, nil
	case retired != nil:
		if retired.owner != params.Principal.UserID {
			return nil, ErrUnauthorized
		}
		if retired.state == wizard.StateExpired {
			return nil, wizard.ErrWizardExpired
		}
		return nil, fmt.Errorf("%w: state is %s", wizard.ErrWizardNotActive, retired.state)
	default:
		return nil, ErrNotFound
	}
}

func (e *wizardEntry) view() WizardView {
	return WizardView{ID: e.id, GroupID: e.groupID, Snapshot: e.wizard.Snapshot()}
}

// clone copies the session value. The roster pointer is shared on purpose:
// every copy addresses the same roster.
func (s *Session) clone() Session {
	out := *s
	if s.ScheduledAt != nil {
		at := *s.ScheduledAt
		out.ScheduledAt = &at
	}
	return out
}
