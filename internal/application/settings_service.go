package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/squad-scheduler/internal/registry"
)

// TimezoneRegistry is the subset of the timezone registry used by SettingsService.
type TimezoneRegistry interface {
	Set(ctx context.Context, participant, tzName string) error
	Get(participant string) (string, bool)
	Clear(ctx context.Context, participant string) (bool, error)
	Search(query string) []string
}

// PingRoleRegistry is the subset of the ping role registry used by SettingsService.
type PingRoleRegistry interface {
	SetRole(ctx context.Context, group, role string, isAdmin bool) error
	ClearRole(ctx context.Context, group string, isAdmin bool) (bool, error)
	Role(group string) (string, bool)
}

// SettingsService manages participant timezones and group ping roles.
type SettingsService struct {
	gate      Gatekeeper
	timezones TimezoneRegistry
	roles     PingRoleRegistry
	logger    *slog.Logger
}

// NewSettingsService constructs a settings service.
func NewSettingsService(gate Gatekeeper, timezones TimezoneRegistry, roles PingRoleRegistry) *SettingsService {
	return NewSettingsServiceWithLogger(gate, timezones, roles, nil)
}

// NewSettingsServiceWithLogger constructs a settings service with a custom logger.
func NewSettingsServiceWithLogger(gate Gatekeeper, timezones TimezoneRegistry, roles PingRoleRegistry, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		gate:      gate,
		timezones: timezones,
		roles:     roles,
		logger:    defaultLogger(logger),
	}
}

func (s *SettingsService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SettingsService", operation, attrs...)
}

// SetTimezone registers the principal's IANA timezone.
func (s *SettingsService) SetTimezone(ctx context.Context, params TimezoneParams) (tz string, err error) {
	if s == nil || s.timezones == nil {
		err = fmt.Errorf("SettingsService timezone registry is nil")
		return
	}

	logger := s.loggerWith(ctx, "SetTimezone",
		"principal_id", params.Principal.UserID,
		"timezone", params.Timezone,
	)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "timezone not registered", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "timezone registered")
	}()

	if err = requireParticipant(params.Principal); err != nil {
		return
	}

	tz = strings.TrimSpace(params.Timezone)
	if err = s.timezones.Set(ctx, params.Principal.UserID, tz); err != nil {
		return
	}
	return
}

// GetTimezone returns the principal's registered timezone.
func (s *SettingsService) GetTimezone(ctx context.Context, principal Principal) (string, error) {
	if err := requireParticipant(principal); err != nil {
		return "", err
	}
	tz, ok := s.timezones.Get(principal.UserID)
	if !ok {
		return "", ErrNotFound
	}
	return tz, nil
}

// ClearTimezone removes the principal's timezone and reports whether one was set.
func (s *SettingsService) ClearTimezone(ctx context.Context, principal Principal) (removed bool, err error) {
	logger := s.loggerWith(ctx, "ClearTimezone", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to clear timezone", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "timezone cleared", "removed", removed)
	}()

	if err = requireParticipant(principal); err != nil {
		return
	}
	removed, err = s.timezones.Clear(ctx, principal.UserID)
	return
}

// SearchTimezones returns zone names matching query for autocomplete.
func (s *SettingsService) SearchTimezones(ctx context.Context, query string) []string {
	return s.timezones.Search(query)
}

// SetPingRole configures the principal's group ping role.
func (s *SettingsService) SetPingRole(ctx context.Context, params PingRoleParams) (err error) {
	if s == nil || s.roles == nil {
		return fmt.Errorf("SettingsService ping role registry is nil")
	}

	principal := params.Principal
	logger := s.loggerWith(ctx, "SetPingRole",
		"principal_id", principal.UserID,
		"group_id", principal.GroupID,
		"role_id", params.RoleID,
	)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "ping role not configured", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "ping role configured")
	}()

	if err = requireGroup(principal); err != nil {
		return
	}
	if s.gate != nil {
		if err = s.gate.Check(principal.GroupID, registry.CommandSetRole); err != nil {
			return
		}
	}
	err = s.roles.SetRole(ctx, principal.GroupID, params.RoleID, principal.IsAdmin)
	return
}

// ClearPingRole removes the principal's group ping role.
func (s *SettingsService) ClearPingRole(ctx context.Context, principal Principal) (removed bool, err error) {
	logger := s.loggerWith(ctx, "ClearPingRole",
		"principal_id", principal.UserID,
		"group_id", principal.GroupID,
	)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "ping role not cleared", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "ping role cleared", "removed", removed)
	}()

	if err = requireGroup(principal); err != nil {
		return
	}
	if s.gate != nil {
		if err = s.gate.Check(principal.GroupID, registry.CommandClearRole); err != nil {
			return
		}
	}
	removed, err = s.roles.ClearRole(ctx, principal.GroupID, principal.IsAdmin)
	return
}

// GetPingRole returns the ping role of the principal's group.
func (s *SettingsService) GetPingRole(ctx context.Context, principal Principal) (string, error) {
	if err := requireGroup(principal); err != nil {
		return "", err
	}
	role, ok := s.roles.Role(principal.GroupID)
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

func requireParticipant(principal Principal) error {
	if strings.TrimSpace(principal.UserID) != "" {
		return nil
	}
	vErr := &ValidationError{}
	vErr.add("participant", "participant is required")
	return vErr
}

func requireGroup(principal Principal) error {
	vErr := &ValidationError{}
	if strings.TrimSpace(principal.UserID) == "" {
		vErr.add("participant", "participant is required")
	}
	if strings.TrimSpace(principal.GroupID) == "" {
		vErr.add("group", "group is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
