package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/squad-scheduler/internal/logging"
	"github.com/example/squad-scheduler/internal/registry"
	"github.com/example/squad-scheduler/internal/roster"
	"github.com/example/squad-scheduler/internal/wizard"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, registry.ErrNotAdmin):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, registry.ErrDenied):
		return "denied"
	case errors.Is(err, wizard.ErrInvalidSelection):
		return "invalid_selection"
	case errors.Is(err, wizard.ErrWizardExpired):
		return "wizard_expired"
	case errors.Is(err, wizard.ErrWizardNotActive):
		return "wizard_not_active"
	case errors.Is(err, wizard.ErrTimezoneNotConfigured):
		return "timezone_not_configured"
	case errors.Is(err, registry.ErrInvalidTimezone):
		return "invalid_timezone"
	case errors.Is(err, registry.ErrStoreIO):
		return "store_io"
	case errors.Is(err, roster.ErrInvalidStatus), errors.Is(err, registry.ErrInvalidRole):
		return "validation"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
