package http

import (
	"context"
	"net/http"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Sessions *SessionHandler
	Wizards  *WizardHandler
	Settings *SettingsHandler
	Health   Pinger
	// Participant wraps every route that acts on behalf of a participant.
	Participant func(http.Handler) http.Handler
	// Throttle additionally wraps the click driven routes.
	Throttle   func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	participant := func(h http.HandlerFunc) http.Handler {
		return chain(h, cfg.Participant)
	}
	throttled := func(h http.HandlerFunc) http.Handler {
		return chain(h, cfg.Participant, cfg.Throttle)
	}

	if cfg.Sessions != nil {
		mux.Handle("POST /sessions/tonight", throttled(cfg.Sessions.CreateTonight))
		mux.Handle("GET /sessions/{id}", participant(cfg.Sessions.Get))
		mux.Handle("POST /sessions/{id}/responses", throttled(cfg.Sessions.Respond))
	}

	if cfg.Wizards != nil {
		mux.Handle("POST /wizards", throttled(cfg.Wizards.Begin))
		mux.Handle("GET /wizards/{id}", participant(cfg.Wizards.Get))
		mux.Handle("POST /wizards/{id}/date", throttled(cfg.Wizards.SelectDate))
		mux.Handle("POST /wizards/{id}/hour", throttled(cfg.Wizards.SelectHour))
		mux.Handle("POST /wizards/{id}/minute", throttled(cfg.Wizards.SelectMinute))
		mux.Handle("DELETE /wizards/{id}", participant(cfg.Wizards.Cancel))
	}

	if cfg.Settings != nil {
		mux.Handle("GET /timezone", participant(cfg.Settings.GetTimezone))
		mux.Handle("PUT /timezone", participant(cfg.Settings.SetTimezone))
		mux.Handle("DELETE /timezone", participant(cfg.Settings.ClearTimezone))
		mux.Handle("GET /timezones", participant(cfg.Settings.SearchTimezones))
		mux.Handle("GET /ping-role", participant(cfg.Settings.GetPingRole))
		mux.Handle("PUT /ping-role", participant(cfg.Settings.SetPingRole))
		mux.Handle("DELETE /ping-role", participant(cfg.Settings.ClearPingRole))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		if cfg.Health != nil {
			if err := cfg.Health.Ping(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
			}
		}
		newResponder(nil).writeJSON(r.Context(), w, status, body)
	})

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// chain applies middleware so the first one listed runs first.
func chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] != nil {
			h = middleware[i](h)
		}
	}
	return h
}
