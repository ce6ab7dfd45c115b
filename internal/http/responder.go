package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/squad-scheduler/internal/application"
	"github.com/example/squad-scheduler/internal/registry"
)

var (
	errBadRequestBody     = errors.New("request body is malformed")
	errMissingParticipant = errors.New("X-Participant-ID header is required")
	errRateLimited        = errors.New("too many requests")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError translates service errors into status codes. The error
// kind doubles as the machine readable code.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)
	body := errorResponse{ErrorCode: strings.ToUpper(kind), Message: kindMessage(kind)}

	switch kind {
	case "denied":
		var denied *registry.DeniedError
		if errors.As(err, &denied) {
			body.Hint = denied.Reason
		}
	case "validation":
		var vErr *application.ValidationError
		if errors.As(err, &vErr) && vErr.HasErrors() {
			body.Errors = vErr.FieldErrors
		} else {
			body.Message = err.Error()
		}
	case "invalid_selection", "invalid_timezone", "wizard_not_active":
		body.Message = err.Error()
	case "unexpected":
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
	}

	r.writeJSON(ctx, w, statusForKind(kind), body)
}

func statusForKind(kind string) int {
	switch kind {
	case "invalid_selection", "invalid_timezone", "validation":
		return http.StatusBadRequest
	case "denied", "unauthorized":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "wizard_expired", "wizard_not_active":
		return http.StatusConflict
	case "timezone_not_configured":
		return http.StatusPreconditionFailed
	case "store_io":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func kindMessage(kind string) string {
	switch kind {
	case "denied":
		return "this command is not available in this server yet"
	case "unauthorized":
		return "you are not allowed to perform this action"
	case "not_found":
		return "the requested resource does not exist"
	case "wizard_expired":
		return "the scheduling prompt timed out; start again"
	case "timezone_not_configured":
		return "register your timezone before choosing a time"
	case "store_io":
		return "the change was applied but could not be saved; try again later"
	case "validation":
		return "the request contains invalid values"
	default:
		return "internal server error"
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Hint      string            `json:"hint,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}
