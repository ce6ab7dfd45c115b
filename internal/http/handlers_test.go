package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/squad-scheduler/internal/testfixtures"
	"github.com/example/squad-scheduler/internal/wizard"
)

type testServer struct {
	handler http.Handler
	clock   *testfixtures.Clock
	regs    testfixtures.Registries
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	factory := testfixtures.NewServiceFactory()
	regs := testfixtures.NewRegistries(t, nil)
	sessions := factory.NewSessionService(testfixtures.SessionServiceDeps{Registries: regs, Logger: logger})
	settings := factory.NewSettingsService(regs, logger)

	srv := &testServer{clock: factory.Clock, regs: regs}
	srv.handler = NewRouter(RouterConfig{
		Sessions:    NewSessionHandler(sessions, logger),
		Wizards:     NewWizardHandler(sessions, logger),
		Settings:    NewSettingsHandler(settings, logger),
		Participant: RequireParticipant(logger),
		Throttle:    RateLimitParticipant(NewParticipantRateLimiter(0, 1, 0), logger),
		Middleware:  []func(http.Handler) http.Handler{RequestLogger(logger)},
	})
	return srv
}

type requestOption func(*http.Request)

func as(participant, group string, admin bool) requestOption {
	return func(r *http.Request) {
		r.Header.Set(HeaderParticipantID, participant)
		r.Header.Set(HeaderGroupID, group)
		if admin {
			r.Header.Set(HeaderGroupAdmin, "true")
		}
	}
}

func header(key, value string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, opts ...requestOption) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode %s %s response: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, payload
}

func TestSessionHandlers(t *testing.T) {
	t.Parallel()

	t.Run("tonight is denied until a ping role exists", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec, body := srv.do(t, http.MethodPost, "/sessions/tonight", "", as("alice", "guild-1", false))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if body["error_code"] != "DENIED" || body["hint"] == nil {
			t.Fatalf("expected denial with hint, got %v", body)
		}
	})

	t.Run("announce and respond", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)

		rec, _ := srv.do(t, http.MethodPut, "/ping-role", `{"role_id":"role-raiders"}`, as("admin", "guild-1", true))
		if rec.Code != http.StatusOK {
			t.Fatalf("set ping role: expected 200, got %d", rec.Code)
		}

		rec, body := srv.do(t, http.MethodPost, "/sessions/tonight", "", as("alice", "guild-1", false))
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%v)", rec.Code, body)
		}
		session := body["session"].(map[string]any)
		if session["tonight"] != true || session["ping_role_id"] != "role-raiders" {
			t.Fatalf("unexpected session payload: %v", session)
		}
		id := session["id"].(string)

		rec, body = srv.do(t, http.MethodPost, "/sessions/"+id+"/responses", `{"status":"joining"}`, as("bob", "guild-1", false))
		if rec.Code != http.StatusOK {
			t.Fatalf("respond: expected 200, got %d (%v)", rec.Code, body)
		}
		roster := body["session"].(map[string]any)["roster"].(map[string]any)
		if roster["total"].(float64) != 1 {
			t.Fatalf("expected one response, got %v", roster)
		}
		if joining := roster["joining"].([]any); len(joining) != 1 || joining[0] != "bob" {
			t.Fatalf("expected bob joining, got %v", joining)
		}

		etag := rec.Header().Get("ETag")
		if etag == "" || roster["version"].(float64) != 1 {
			t.Fatalf("expected roster version 1 with an ETag, got %q (%v)", etag, roster)
		}
		rec, _ = srv.do(t, http.MethodGet, "/sessions/"+id, "", as("bob", "guild-1", false), header("If-None-Match", etag))
		if rec.Code != http.StatusNotModified {
			t.Fatalf("unchanged roster: expected 304, got %d", rec.Code)
		}
		rec, _ = srv.do(t, http.MethodPost, "/sessions/"+id+"/responses", `{"status":"joining"}`, as("bob", "guild-1", false))
		if rec.Header().Get("ETag") != etag {
			t.Fatalf("repeated status must keep the ETag, got %q want %q", rec.Header().Get("ETag"), etag)
		}
		srv.do(t, http.MethodPost, "/sessions/"+id+"/responses", `{"status":"maybe"}`, as("carol", "guild-1", false))
		rec, _ = srv.do(t, http.MethodGet, "/sessions/"+id, "", as("bob", "guild-1", false), header("If-None-Match", etag))
		if rec.Code != http.StatusOK || rec.Header().Get("ETag") == etag {
			t.Fatalf("changed roster: expected 200 with a new ETag, got %d %q", rec.Code, rec.Header().Get("ETag"))
		}

		rec, _ = srv.do(t, http.MethodPost, "/sessions/"+id+"/responses", `{"status":"later"}`, as("bob", "guild-1", false))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("invalid status: expected 400, got %d", rec.Code)
		}

		rec, _ = srv.do(t, http.MethodGet, "/sessions/missing", "", as("bob", "guild-1", false))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("missing session: expected 404, got %d", rec.Code)
		}
	})

	t.Run("requests without participant are rejected", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t)
		rec, _ := srv.do(t, http.MethodPost, "/sessions/tonight", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestWizardHandlers(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	alice := as("alice", "guild-1", false)

	srv.do(t, http.MethodPut, "/ping-role", `{"role_id":"role-raiders"}`, as("admin", "guild-1", true))

	rec, body := srv.do(t, http.MethodPost, "/wizards", "", alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("begin: expected 201, got %d (%v)", rec.Code, body)
	}
	wiz := body["wizard"].(map[string]any)
	id := wiz["id"].(string)
	dates := wiz["options"].(map[string]any)["dates"].([]any)
	if len(dates) != 5 || dates[0] != "2025-07-10" {
		t.Fatalf("unexpected date options: %v", dates)
	}

	rec, _ = srv.do(t, http.MethodPost, "/wizards/"+id+"/hour", `{"hour":20}`, alice)
	if rec.Code != http.StatusConflict {
		t.Fatalf("out of order step: expected 409, got %d", rec.Code)
	}

	rec, _ = srv.do(t, http.MethodPost, "/wizards/"+id+"/date", `{"date":"2025-07-12"}`, as("bob", "guild-1", false))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner: expected 403, got %d", rec.Code)
	}

	rec, body = srv.do(t, http.MethodPost, "/wizards/"+id+"/date", `{"date":"2025-07-12"}`, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("date: expected 200, got %d (%v)", rec.Code, body)
	}
	if hours := body["wizard"].(map[string]any)["options"].(map[string]any)["hours"].([]any); len(hours) != 24 {
		t.Fatalf("expected 24 hour options, got %d", len(hours))
	}

	if rec, _ = srv.do(t, http.MethodPost, "/wizards/"+id+"/hour", `{}`, alice); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing hour: expected 400, got %d", rec.Code)
	}
	if rec, _ = srv.do(t, http.MethodPost, "/wizards/"+id+"/hour", `{"hour":20}`, alice); rec.Code != http.StatusOK {
		t.Fatalf("hour: expected 200, got %d", rec.Code)
	}

	rec, body = srv.do(t, http.MethodPost, "/wizards/"+id+"/minute", `{"minute":30}`, alice)
	if rec.Code != http.StatusPreconditionFailed || body["error_code"] != "TIMEZONE_NOT_CONFIGURED" {
		t.Fatalf("minute without timezone: expected 412, got %d (%v)", rec.Code, body)
	}

	if rec, _ = srv.do(t, http.MethodPut, "/timezone", `{"timezone":"Europe/Berlin"}`, alice); rec.Code != http.StatusOK {
		t.Fatalf("set timezone: expected 200, got %d", rec.Code)
	}

	rec, body = srv.do(t, http.MethodPost, "/wizards/"+id+"/minute", `{"minute":30}`, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("minute: expected 201, got %d (%v)", rec.Code, body)
	}
	session := body["session"].(map[string]any)
	want := time.Date(2025, time.July, 12, 18, 30, 0, 0, time.UTC).Unix()
	if int64(session["scheduled_at"].(float64)) != want {
		t.Fatalf("expected scheduled_at %d, got %v", want, session["scheduled_at"])
	}

	if rec, _ = srv.do(t, http.MethodPost, "/wizards/"+id+"/minute", `{"minute":0}`, alice); rec.Code != http.StatusConflict {
		t.Fatalf("completed wizard: expected 409, got %d", rec.Code)
	}
}

func TestWizardHandlers_Expiry(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	alice := as("alice", "guild-1", false)

	if err := srv.regs.PingRoles.SetRole(context.Background(), "guild-1", "role-raiders", true); err != nil {
		t.Fatalf("set role: %v", err)
	}

	rec, body := srv.do(t, http.MethodPost, "/wizards", "", alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("begin: expected 201, got %d (%v)", rec.Code, body)
	}
	id := body["wizard"].(map[string]any)["id"].(string)

	srv.clock.AdvancePast(wizard.DefaultTimeout)

	rec, body = srv.do(t, http.MethodPost, "/wizards/"+id+"/date", `{"date":"not-a-date"}`, alice)
	if rec.Code != http.StatusConflict || body["error_code"] != "WIZARD_EXPIRED" {
		t.Fatalf("malformed date on expired wizard: expected 409 WIZARD_EXPIRED, got %d (%v)", rec.Code, body)
	}

	rec, body = srv.do(t, http.MethodGet, "/wizards/"+id, "", alice)
	if rec.Code != http.StatusOK || body["wizard"].(map[string]any)["state"] != wizard.StateExpired.String() {
		t.Fatalf("expected expired wizard view, got %d (%v)", rec.Code, body)
	}
}

func TestSettingsHandlers(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	alice := as("alice", "guild-1", false)

	if rec, _ := srv.do(t, http.MethodGet, "/timezone", "", alice); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before registration, got %d", rec.Code)
	}

	rec, body := srv.do(t, http.MethodPut, "/timezone", `{"timezone":"Not/AZone"}`, alice)
	if rec.Code != http.StatusBadRequest || body["error_code"] != "INVALID_TIMEZONE" {
		t.Fatalf("expected 400 INVALID_TIMEZONE, got %d (%v)", rec.Code, body)
	}

	rec, body = srv.do(t, http.MethodGet, "/timezones?q=new_y", "", alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", rec.Code)
	}
	if names := body["timezones"].([]any); len(names) == 0 || names[0] != "America/New_York" {
		t.Fatalf("expected America/New_York, got %v", names)
	}

	rec, _ = srv.do(t, http.MethodPut, "/ping-role", `{"role_id":"role-1"}`, alice)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin ping role: expected 403, got %d", rec.Code)
	}

	rec, body = srv.do(t, http.MethodDelete, "/ping-role", "", as("admin", "guild-1", true))
	if rec.Code != http.StatusOK || body["removed"] != false {
		t.Fatalf("clear missing role: expected removed=false, got %d (%v)", rec.Code, body)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	rec, body := srv.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("expected ok, got %d (%v)", rec.Code, body)
	}
}
