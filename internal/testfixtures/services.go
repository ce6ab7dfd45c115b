package testfixtures

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/example/squad-scheduler/internal/application"
	"github.com/example/squad-scheduler/internal/persistence"
	"github.com/example/squad-scheduler/internal/registry"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// Registries bundles the registries loaded from one store.
type Registries struct {
	Store     persistence.KeyValueStore
	Timezones *registry.Timezones
	PingRoles *registry.PingRoles
	Gate      *registry.Gate
}

// NewRegistries loads both registries from store. A nil store selects a fresh
// in-memory store.
func NewRegistries(tb testing.TB, store persistence.KeyValueStore) Registries {
	tb.Helper()
	if store == nil {
		store = persistence.NewMemoryStore()
	}
	ctx := context.Background()

	zones, err := registry.LoadTimezones(ctx, store)
	if err != nil {
		tb.Fatalf("failed to load timezones: %v", err)
	}
	roles, err := registry.LoadPingRoles(ctx, store)
	if err != nil {
		tb.Fatalf("failed to load ping roles: %v", err)
	}
	return Registries{Store: store, Timezones: zones, PingRoles: roles, Gate: registry.NewGate(roles)}
}

// SessionServiceDeps captures dependencies for constructing a session service.
type SessionServiceDeps struct {
	Registries    Registries
	WizardTimeout time.Duration
	Retention     time.Duration
	IDGenerator   func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

// NewSessionService builds a session service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewSessionService(deps SessionServiceDeps) *application.SessionService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	regs := deps.Registries
	return application.NewSessionServiceWithLogger(
		regs.Gate,
		regs.Timezones,
		regs.PingRoles,
		idGen,
		now,
		deps.WizardTimeout,
		deps.Retention,
		deps.Logger,
	)
}

// NewSettingsService builds a settings service over the supplied registries.
func (f *ServiceFactory) NewSettingsService(regs Registries, logger *slog.Logger) *application.SettingsService {
	return application.NewSettingsServiceWithLogger(regs.Gate, regs.Timezones, regs.PingRoles, logger)
}
