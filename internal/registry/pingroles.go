package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/example/squad-scheduler/internal/persistence"
)

var (
	// ErrNotAdmin is returned when a non-administrator changes a group's ping role.
	ErrNotAdmin = errors.New("registry: administrator capability required")
	// ErrInvalidRole is returned for an empty role identity.
	ErrInvalidRole = errors.New("registry: invalid role")
)

// PingRoles maps groups to the role mentioned when a session is announced.
type PingRoles struct {
	table *table
}

// LoadPingRoles builds the registry from the store's ping_roles namespace.
func LoadPingRoles(ctx context.Context, store persistence.KeyValueStore) (*PingRoles, error) {
	t, err := loadTable(ctx, store, persistence.NamespacePingRoles)
	if err != nil {
		return nil, err
	}
	return &PingRoles{table: t}, nil
}

// SetRole configures the group's ping role. The caller's administrative
// capability is decided by the platform and passed in as isAdmin.
func (r *PingRoles) SetRole(ctx context.Context, group, role string, isAdmin bool) error {
	if !isAdmin {
		return ErrNotAdmin
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return ErrInvalidRole
	}
	return r.table.set(ctx, group, role)
}

// ClearRole removes the group's ping role and reports whether one was set.
func (r *PingRoles) ClearRole(ctx context.Context, group string, isAdmin bool) (bool, error) {
	if !isAdmin {
		return false, ErrNotAdmin
	}
	return r.table.delete(ctx, group)
}

// Role returns the group's ping role, if configured.
func (r *PingRoles) Role(group string) (string, bool) {
	return r.table.get(group)
}
