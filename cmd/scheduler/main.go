package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/squad-scheduler/internal/application"
	"github.com/example/squad-scheduler/internal/config"
	httptransport "github.com/example/squad-scheduler/internal/http"
	"github.com/example/squad-scheduler/internal/logging"
	"github.com/example/squad-scheduler/internal/persistence"
	"github.com/example/squad-scheduler/internal/persistence/sqlite"
	"github.com/example/squad-scheduler/internal/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("squad scheduler stopped", "error", err)
		os.Exit(1)
	}
}

// run wires the store, registries and services and serves HTTP until ctx is
// cancelled.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	}()

	app, err := newApp(ctx, cfg, store, time.Now, uuid.NewString, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("squad scheduler listening", "addr", server.Addr, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		runSweeper(gctx, app.sessions, cfg.SweepInterval, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// managedStore is a KeyValueStore with a lifecycle.
type managedStore interface {
	persistence.KeyValueStore
	io.Closer
	Ping(ctx context.Context) error
}

type memoryStore struct {
	*persistence.MemoryStore
}

func (memoryStore) Close() error                   { return nil }
func (memoryStore) Ping(ctx context.Context) error { return nil }

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (managedStore, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; registrations are lost on restart")
		return memoryStore{persistence.NewMemoryStore()}, nil
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return storage, nil
}

type app struct {
	sessions *application.SessionService
	settings *application.SettingsService
	handler  http.Handler
}

func newApp(ctx context.Context, cfg config.Config, store managedStore, now func() time.Time, ids func() string, logger *slog.Logger) (*app, error) {
	timezones, err := registry.LoadTimezones(ctx, store)
	if err != nil {
		return nil, err
	}
	pingRoles, err := registry.LoadPingRoles(ctx, store)
	if err != nil {
		return nil, err
	}
	gate := registry.NewGate(pingRoles)
	logger.Info("registries loaded", "timezones", timezones.Len())

	sessions := application.NewSessionServiceWithLogger(gate, timezones, pingRoles, ids, now, cfg.WizardTimeout, cfg.SessionRetention, logger)
	settings := application.NewSettingsServiceWithLogger(gate, timezones, pingRoles, logger)

	limiter := httptransport.NewParticipantRateLimiter(cfg.RespondRatePerMin, cfg.RespondBurst, 10*time.Minute)
	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:    httptransport.NewSessionHandler(sessions, logger),
		Wizards:     httptransport.NewWizardHandler(sessions, logger),
		Settings:    httptransport.NewSettingsHandler(settings, logger),
		Health:      store,
		Participant: httptransport.RequireParticipant(logger),
		Throttle:    httptransport.RateLimitParticipant(limiter, logger),
		Middleware:  []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &app{sessions: sessions, settings: settings, handler: handler}, nil
}

// runSweeper retires finished wizards and old sessions until ctx is done.
func runSweeper(ctx context.Context, sessions *application.SessionService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wizards, forgotten := sessions.Sweep(ctx)
			if wizards > 0 || forgotten > 0 {
				logger.Info("sweep completed", "wizards_retired", wizards, "sessions_forgotten", forgotten, "active_wizards", sessions.ActiveWizards())
			}
		}
	}
}
