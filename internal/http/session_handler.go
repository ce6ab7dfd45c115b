package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/squad-scheduler/internal/application"
	"github.com/example/squad-scheduler/internal/roster"
)

type sessionService interface {
	CreateTonight(ctx context.Context, params application.CreateSessionParams) (application.Session, error)
	GetSession(ctx context.Context, principal application.Principal, sessionID string) (application.SessionView, error)
	Respond(ctx context.Context, params application.RespondParams) (application.SessionView, error)
}

type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

// CreateTonight handles POST /sessions/tonight.
func (h *SessionHandler) CreateTonight(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "CreateTonight", "principal_id", principal.UserID, "group_id", principal.GroupID)

	session, err := h.service.CreateTonight(r.Context(), application.CreateSessionParams{Principal: principal})
	if err != nil {
		logger.WarnContext(r.Context(), "tonight session rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", session.ID).InfoContext(r.Context(), "tonight session announced")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{
		Session: toSessionDTO(session, session.Roster.Snapshot()),
	})
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := strings.TrimSpace(r.PathValue("id"))

	view, err := h.service.GetSession(r.Context(), principal, sessionID)
	if err != nil {
		h.log(r.Context(), "Get", "session_id", sessionID).
			WarnContext(r.Context(), "session lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	etag := rosterETag(view.Session.ID, view.Snapshot)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(view.Session, view.Snapshot)})
}

// Respond handles POST /sessions/{id}/responses.
func (h *SessionHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := strings.TrimSpace(r.PathValue("id"))

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Respond", "principal_id", principal.UserID, "session_id", sessionID, "error_kind", "bad_request").
			WarnContext(r.Context(), "failed to decode response request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	status, err := roster.ParseStatus(req.Status)
	if err != nil {
		vErr := &application.ValidationError{FieldErrors: map[string]string{
			"status": "status must be one of joining, cant_make_it, maybe",
		}}
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	view, err := h.service.Respond(r.Context(), application.RespondParams{
		Principal: principal,
		SessionID: sessionID,
		Status:    status,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("ETag", rosterETag(view.Session.ID, view.Snapshot))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(view.Session, view.Snapshot)})
}

type respondRequest struct {
	Status string `json:"status"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type sessionDTO struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	OrganizerID string    `json:"organizer_id"`
	Tonight     bool      `json:"tonight"`
	ScheduledAt *int64    `json:"scheduled_at,omitempty"`
	CreatedAt   int64     `json:"created_at"`
	PingRoleID  string    `json:"ping_role_id,omitempty"`
	Roster      rosterDTO `json:"roster"`
}

type rosterDTO struct {
	Joining    []string       `json:"joining"`
	CantMakeIt []string       `json:"cant_make_it"`
	Maybe      []string       `json:"maybe"`
	Counts     map[string]int `json:"counts"`
	Total      int            `json:"total"`
	Version    uint64         `json:"version"`
}

func toSessionDTO(session application.Session, snap roster.Snapshot) sessionDTO {
	dto := sessionDTO{
		ID:          session.ID,
		GroupID:     session.GroupID,
		OrganizerID: session.OrganizerID,
		Tonight:     session.Tonight(),
		CreatedAt:   session.CreatedAt.Unix(),
		PingRoleID:  session.PingRoleID,
		Roster:      toRosterDTO(snap),
	}
	if session.ScheduledAt != nil {
		at := session.ScheduledAt.Unix()
		dto.ScheduledAt = &at
	}
	return dto
}

func toRosterDTO(snap roster.Snapshot) rosterDTO {
	counts := make(map[string]int, len(roster.Statuses))
	for _, status := range roster.Statuses {
		counts[status.String()] = snap.Count(status)
	}
	return rosterDTO{
		Joining:    snap.Members(roster.StatusJoining),
		CantMakeIt: snap.Members(roster.StatusCantMakeIt),
		Maybe:      snap.Members(roster.StatusMaybe),
		Counts:     counts,
		Total:      snap.Total(),
		Version:    snap.Version(),
	}
}

// rosterETag changes whenever a response changes the session's roster.
func rosterETag(sessionID string, snap roster.Snapshot) string {
	return `"` + sessionID + "." + strconv.FormatUint(snap.Version(), 10) + `"`
}
