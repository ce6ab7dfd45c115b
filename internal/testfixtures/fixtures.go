package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/squad-scheduler/internal/application"
)

var participantCounter uint64

// referenceTime sits late in the UTC evening so candidate dates and local
// dates differ for zones east of UTC.
var referenceTime = time.Date(2025, time.July, 10, 22, 15, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// PrincipalOption configures a generated principal.
type PrincipalOption func(*application.Principal)

// NewPrincipal returns a participant in the default group with optional overrides.
func NewPrincipal(opts ...PrincipalOption) application.Principal {
	idx := atomic.AddUint64(&participantCounter, 1)
	principal := application.Principal{
		UserID:  fmt.Sprintf("participant-%03d", idx),
		GroupID: DefaultGroupID,
	}
	for _, opt := range opts {
		opt(&principal)
	}
	return principal
}

// DefaultGroupID is the group used by NewPrincipal.
const DefaultGroupID = "group-001"

// WithUserID overrides the participant identity.
func WithUserID(id string) PrincipalOption {
	return func(p *application.Principal) {
		p.UserID = id
	}
}

// WithGroupID overrides the originating group.
func WithGroupID(id string) PrincipalOption {
	return func(p *application.Principal) {
		p.GroupID = id
	}
}

// AsAdmin grants the platform administrator capability.
func AsAdmin() PrincipalOption {
	return func(p *application.Principal) {
		p.IsAdmin = true
	}
}
