package registry

import (
	"errors"
	"fmt"
)

// Command names a scheduling action subject to the gate.
type Command string

const (
	CommandTonight   Command = "tonight"
	CommandSpecific  Command = "specific"
	CommandSetRole   Command = "set-role"
	CommandClearRole Command = "clear-role"
)

// ErrDenied matches every *DeniedError.
var ErrDenied = errors.New("registry: denied")

// DeniedError explains why the gate refused a command.
type DeniedError struct {
	Group   string
	Command Command
	Reason  string
}

func (e *DeniedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s denied: %s", e.Command, e.Reason)
}

// Is reports ErrDenied as a match.
func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

// RoleLookup resolves a group's ping role.
type RoleLookup interface {
	Role(group string) (string, bool)
}

// Gate decides whether a scheduling command may run in a group.
type Gate struct {
	roles RoleLookup
}

// NewGate returns a gate backed by roles.
func NewGate(roles RoleLookup) *Gate {
	return &Gate{roles: roles}
}

// Check returns nil when command may proceed, or a *DeniedError. Role
// management commands always pass so a group can configure itself.
func (g *Gate) Check(group string, command Command) error {
	switch command {
	case CommandSetRole, CommandClearRole:
		return nil
	}
	if g != nil && g.roles != nil {
		if _, ok := g.roles.Role(group); ok {
			return nil
		}
	}
	return &DeniedError{
		Group:   group,
		Command: command,
		Reason:  "no ping role is configured for this server; an administrator must run set-role first",
	}
}
