package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/swapmarket/internal/application"
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
	factory := &ServiceFactory{}
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

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	Hash           application.PasswordHasher
	Verify         application.PasswordVerifier
	IDGenerator    func() string
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service. A zero SessionTTL defaults to one hour.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	token := deps.TokenGenerator
	if token == nil {
		token = idGen
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.Hash,
		deps.Verify,
		idGen,
		token,
		now,
		ttl,
		deps.Logger,
	)
}

// EventServiceDeps captures dependencies for constructing an event service.
type EventServiceDeps struct {
	Events      application.EventRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewEventService builds an event service using the supplied dependencies.
func (f *ServiceFactory) NewEventService(deps EventServiceDeps) *application.EventService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewEventServiceWithLogger(deps.Events, idGen, now, deps.Logger)
}

// SwapServiceDeps captures dependencies for constructing a swap service.
type SwapServiceDeps struct {
	Swaps       application.SwapRepository
	Exchanger   application.SwapExchanger
	Events      application.EventRepository
	Users       application.UserDirectory
	Notifier    application.Notifier
	Lenient     bool
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewSwapService builds a swap service. Proposals are validated strictly
// unless Lenient is set.
func (f *ServiceFactory) NewSwapService(deps SwapServiceDeps) *application.SwapService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewSwapServiceWithLogger(
		deps.Swaps,
		deps.Exchanger,
		deps.Events,
		deps.Users,
		deps.Notifier,
		idGen,
		now,
		!deps.Lenient,
		deps.Logger,
	)
}
