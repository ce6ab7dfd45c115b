package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/squad-scheduler/internal/application"
)

type settingsService interface {
	SetTimezone(ctx context.Context, params application.TimezoneParams) (string, error)
	GetTimezone(ctx context.Context, principal application.Principal) (string, error)
	ClearTimezone(ctx context.Context, principal application.Principal) (bool, error)
	SearchTimezones(ctx context.Context, query string) []string
	SetPingRole(ctx context.Context, params application.PingRoleParams) error
	ClearPingRole(ctx context.Context, principal application.Principal) (bool, error)
	GetPingRole(ctx context.Context, principal application.Principal) (string, error)
}

type SettingsHandler struct {
	service   settingsService
	responder responder
	logger    *slog.Logger
}

func NewSettingsHandler(service settingsService, logger *slog.Logger) *SettingsHandler {
	base := defaultLogger(logger)
	return &SettingsHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SettingsHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SettingsHandler", operation, attrs...)
}

func (h *SettingsHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// GetTimezone handles GET /timezone.
func (h *SettingsHandler) GetTimezone(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	tz, err := h.service.GetTimezone(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, timezoneDTO{Timezone: tz})
}

// SetTimezone handles PUT /timezone.
func (h *SettingsHandler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req timezoneDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SetTimezone", "principal_id", principal.UserID, "error_kind", "bad_request").
			WarnContext(r.Context(), "failed to decode timezone request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	tz, err := h.service.SetTimezone(r.Context(), application.TimezoneParams{Principal: principal, Timezone: req.Timezone})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, timezoneDTO{Timezone: tz})
}

// ClearTimezone handles DELETE /timezone.
func (h *SettingsHandler) ClearTimezone(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	removed, err := h.service.ClearTimezone(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, removedDTO{Removed: removed})
}

// SearchTimezones handles GET /timezones?q=.
func (h *SettingsHandler) SearchTimezones(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	names := h.service.SearchTimezones(r.Context(), r.URL.Query().Get("q"))
	if names == nil {
		names = []string{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, timezoneSearchDTO{Timezones: names})
}

// GetPingRole handles GET /ping-role.
func (h *SettingsHandler) GetPingRole(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	role, err := h.service.GetPingRole(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, pingRoleDTO{RoleID: role})
}

// SetPingRole handles PUT /ping-role.
func (h *SettingsHandler) SetPingRole(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req pingRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SetPingRole", "principal_id", principal.UserID, "error_kind", "bad_request").
			WarnContext(r.Context(), "failed to decode ping role request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := h.service.SetPingRole(r.Context(), application.PingRoleParams{Principal: principal, RoleID: req.RoleID}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, pingRoleDTO{RoleID: strings.TrimSpace(req.RoleID)})
}

// ClearPingRole handles DELETE /ping-role.
func (h *SettingsHandler) ClearPingRole(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	removed, err := h.service.ClearPingRole(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, removedDTO{Removed: removed})
}

type timezoneDTO struct {
	Timezone string `json:"timezone"`
}

type timezoneSearchDTO struct {
	Timezones []string `json:"timezones"`
}

type pingRoleDTO struct {
	RoleID string `json:"role_id"`
}

type removedDTO struct {
	Removed bool `json:"removed"`
}
