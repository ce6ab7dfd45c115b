package application

import (
	"time"

	"github.com/example/squad-scheduler/internal/roster"
	"github.com/example/squad-scheduler/internal/wizard"
)

// Principal identifies the participant invoking a service method and the group
// the request originates from. IsAdmin is decided by the chat platform.
type Principal struct {
	UserID  string
	GroupID string
	IsAdmin bool
}

// Session is one scheduled or immediate gathering together with its roster.
type Session struct {
	ID          string
	GroupID     string
	OrganizerID string
	// ScheduledAt is nil for a "tonight" session.
	ScheduledAt *time.Time
	CreatedAt   time.Time
	PingRoleID  string
	Roster      *roster.Roster
}

// Tonight reports whether the session has no fixed start time.
func (s Session) Tonight() bool {
	return s.ScheduledAt == nil
}

// SessionView pairs a session with a roster snapshot.
type SessionView struct {
	Session  Session
	Snapshot roster.Snapshot
}

// CreateSessionParams wraps the data required to start a session or wizard.
type CreateSessionParams struct {
	Principal Principal
}

// RespondParams wraps the data required to record an RSVP.
type RespondParams struct {
	Principal Principal
	SessionID string
	Status    roster.Status
}

// WizardParams identifies a wizard driven by the principal.
type WizardParams struct {
	Principal Principal
	WizardID  string
}

// SelectDateParams wraps the date step of a wizard.
type SelectDateParams struct {
	WizardParams
	Date string
}

// SelectHourParams wraps the hour step of a wizard.
type SelectHourParams struct {
	WizardParams
	Hour int
}

// SelectMinuteParams wraps the minute step of a wizard.
type SelectMinuteParams struct {
	WizardParams
	Minute int
}

// WizardView describes a wizard for presentation.
type WizardView struct {
	ID      string
	GroupID string
	wizard.Snapshot
}

// TimezoneParams wraps a timezone registration request.
type TimezoneParams struct {
	Principal Principal
	Timezone  string
}

// PingRoleParams wraps a ping role configuration request.
type PingRoleParams struct {
	Principal Principal
	RoleID    string
}
