package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/squad-scheduler/internal/application"
	"github.com/example/squad-scheduler/internal/wizard"
)

type wizardService interface {
	BeginSpecificScheduling(ctx context.Context, params application.CreateSessionParams) (application.WizardView, error)
	GetWizard(ctx context.Context, params application.WizardParams) (application.WizardView, error)
	SelectDate(ctx context.Context, params application.SelectDateParams) (application.WizardView, error)
	SelectHour(ctx context.Context, params application.SelectHourParams) (application.WizardView, error)
	SelectMinute(ctx context.Context, params application.SelectMinuteParams) (application.Session, error)
	CancelWizard(ctx context.Context, params application.WizardParams) (application.WizardView, error)
}

var errMissingSelection = errors.New("selection value is required")

type WizardHandler struct {
	service   wizardService
	responder responder
	logger    *slog.Logger
}

func NewWizardHandler(service wizardService, logger *slog.Logger) *WizardHandler {
	base := defaultLogger(logger)
	return &WizardHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *WizardHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WizardHandler", operation, attrs...)
}

func (h *WizardHandler) params(r *http.Request) application.WizardParams {
	principal, _ := PrincipalFromContext(r.Context())
	return application.WizardParams{Principal: principal, WizardID: strings.TrimSpace(r.PathValue("id"))}
}

// Begin handles POST /wizards.
func (h *WizardHandler) Begin(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Begin", "principal_id", principal.UserID, "group_id", principal.GroupID)

	view, err := h.service.BeginSpecificScheduling(r.Context(), application.CreateSessionParams{Principal: principal})
	if err != nil {
		logger.WarnContext(r.Context(), "scheduling rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("wizard_id", view.ID).InfoContext(r.Context(), "scheduling prompt opened")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, wizardResponse{Wizard: toWizardDTO(view)})
}

// Get handles GET /wizards/{id}.
func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	view, err := h.service.GetWizard(r.Context(), h.params(r))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wizardResponse{Wizard: toWizardDTO(view)})
}

// SelectDate handles POST /wizards/{id}/date.
func (h *WizardHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params := h.params(r)
	var req dateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SelectDate", "wizard_id", params.WizardID, "error_kind", "bad_request").
			WarnContext(r.Context(), "failed to decode date selection", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	view, err := h.service.SelectDate(r.Context(), application.SelectDateParams{WizardParams: params, Date: req.Date})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wizardResponse{Wizard: toWizardDTO(view)})
}

// SelectHour handles POST /wizards/{id}/hour.
func (h *WizardHandler) SelectHour(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params := h.params(r)
	var req hourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Hour == nil {
		h.log(r.Context(), "SelectHour", "wizard_id", params.WizardID, "error_kind", "bad_request").
			WarnContext(r.Context(), "failed to decode hour selection", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, selectionError(err))
		return
	}

	view, err := h.service.SelectHour(r.Context(), application.SelectHourParams{WizardParams: params, Hour: *req.Hour})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wizardResponse{Wizard: toWizardDTO(view)})
}

// SelectMinute handles POST /wizards/{id}/minute. A completed selection
// answers with the created session.
func (h *WizardHandler) SelectMinute(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params := h.params(r)
	var req minuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Minute == nil {
		h.log(r.Context(), "SelectMinute", "wizard_id", params.WizardID, "error_kind", "bad_request").
			WarnContext(r.Context(), "failed to decode minute selection", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, selectionError(err))
		return
	}

	session, err := h.service.SelectMinute(r.Context(), application.SelectMinuteParams{WizardParams: params, Minute: *req.Minute})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "SelectMinute", "wizard_id", params.WizardID, "session_id", session.ID).
		InfoContext(r.Context(), "scheduled session announced")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{
		Session: toSessionDTO(session, session.Roster.Snapshot()),
	})
}

// Cancel handles DELETE /wizards/{id}.
func (h *WizardHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	view, err := h.service.CancelWizard(r.Context(), h.params(r))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, wizardResponse{Wizard: toWizardDTO(view)})
}

func selectionError(err error) error {
	if err != nil {
		return errBadRequestBody
	}
	return errMissingSelection
}

type dateRequest struct {
	Date string `json:"date"`
}

type hourRequest struct {
	Hour *int `json:"hour"`
}

type minuteRequest struct {
	Minute *int `json:"minute"`
}

type wizardResponse struct {
	Wizard wizardDTO `json:"wizard"`
}

type wizardDTO struct {
	ID          string           `json:"id"`
	GroupID     string           `json:"group_id"`
	OwnerID     string           `json:"owner_id"`
	State       string           `json:"state"`
	Date        *string          `json:"date,omitempty"`
	Hour        *int             `json:"hour,omitempty"`
	Minute      *int             `json:"minute,omitempty"`
	ScheduledAt *int64           `json:"scheduled_at,omitempty"`
	ExpiresAt   int64            `json:"expires_at"`
	Options     wizardOptionsDTO `json:"options"`
}

// wizardOptionsDTO lists the values the current step accepts.
type wizardOptionsDTO struct {
	Dates   []string `json:"dates,omitempty"`
	Hours   []int    `json:"hours,omitempty"`
	Minutes []int    `json:"minutes,omitempty"`
}

func toWizardDTO(view application.WizardView) wizardDTO {
	dto := wizardDTO{
		ID:        view.ID,
		GroupID:   view.GroupID,
		OwnerID:   view.Owner,
		State:     view.State.String(),
		Hour:      view.Hour,
		Minute:    view.Minute,
		ExpiresAt: view.ExpiresAt.Unix(),
	}
	if view.Date != nil {
		d := view.Date.String()
		dto.Date = &d
	}
	if view.Result != nil {
		at := view.Result.Unix()
		dto.ScheduledAt = &at
	}

	switch view.State {
	case wizard.StateAwaitingDate:
		for _, d := range view.Candidates {
			dto.Options.Dates = append(dto.Options.Dates, d.String())
		}
	case wizard.StateAwaitingHour:
		for hour := 0; hour < 24; hour++ {
			dto.Options.Hours = append(dto.Options.Hours, hour)
		}
	case wizard.StateAwaitingMinute:
		dto.Options.Minutes = append(dto.Options.Minutes, wizard.MinuteOffsets...)
	}
	return dto
}
