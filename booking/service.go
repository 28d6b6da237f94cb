/*
service.go - Booking service wiring

PURPOSE:
  Service is the entry point for every booking operation. It owns the
  collaborators the rules need: the transactional store, the token
  policy, a clock, an ID generator, a password hasher and a logger.
  All of them are injected; nothing is global.

OPERATIONS BY FILE:
  calendar.go  Calendar lifecycle (create, update, archive, delete)
  resource.go  Computing resource management
  request.go   Slot request lifecycle (create, decide, delete, check)
  query.go     Filtered request retrieval
  ledger.go    Token debit, credit, refund, recharge
  user.go      Accounts and authentication

EXAMPLE:
  svc := booking.NewService(store, booking.DefaultPolicy(),
      booking.WithLogger(logger),
      booking.WithPasswordHasher(auth.BcryptHasher{}),
  )
*/
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	store    TxStore
	policy   Policy
	now      Clock
	newID    func() string
	hasher   PasswordHasher
	logger   *slog.Logger
	resolver Resolver
	ledger   Ledger
}

type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now Clock) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides UUID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPasswordHasher(h PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

func NewService(store TxStore, policy Policy, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: policy,
		now:    SystemClock,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = Ledger{MaxTokens: policy.MaxTokens, Now: s.now}
	return s
}

// Policy returns the token policy in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// Now returns the service clock reading in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// =============================================================================
// LOGGING
// =============================================================================

type loggerKey struct{}

// ContextWithLogger attaches a request-scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the request-scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger, _ := ctx.Value(loggerKey{}).(*slog.Logger)
	return logger
}

func (s *Service) opLogger(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = s.logger
	}
	pairs := append([]any{"component", "booking", "operation", operation}, attrs...)
	return logger.With(pairs...)
}

// logResult logs the outcome of an operation. Client errors are expected
// traffic and log at Warn; anything else is an Error.
func logResult(ctx context.Context, logger *slog.Logger, err error, msg string, attrs ...any) {
	if err == nil {
		logger.InfoContext(ctx, msg, attrs...)
		return
	}
	level := slog.LevelError
	if IsClientError(err) {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, msg+" failed", "error", err, "error_kind", ErrorKind(err))
}
