package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/reseller/internal/core/domain"
	"github.com/rl1809/reseller/internal/metrics"
	"github.com/rl1809/reseller/internal/port"
)

const tracerName = "github.com/rl1809/reseller/internal/core/service"

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrMissingCaller    = errors.New("missing caller identity")
)

type Option func(*RegistryService)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *RegistryService) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RegistryService) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *RegistryService) {
		s.now = now
	}
}

type RegistryService struct {
	repo       port.RegistryRepository
	cache      port.CacheRepository
	eventQueue chan domain.SellerRegistered
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// NewRegistryService wires the service. cache may be nil, in which case
// request IDs are not deduplicated.
func NewRegistryService(repo port.RegistryRepository, cache port.CacheRepository, queueSize int, opts ...Option) *RegistryService {
	s := &RegistryService{
		repo:       repo,
		cache:      cache,
		eventQueue: make(chan domain.SellerRegistered, queueSize),
		logger:     zap.NewNop().Sugar(),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RegistryService) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "registry."+op, trace.WithAttributes(attrs...))
	start := s.now()

	return ctx, func(errp *error) {
		s.metrics.ObserveDuration(op, s.now().Sub(start))
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

// Deploy creates a registry owned by caller.
func (s *RegistryService) Deploy(ctx context.Context, caller domain.Address) (_ *domain.Registry, err error) {
	ctx, done := s.startSpan(ctx, "deploy", attribute.String("caller", caller.String()))
	defer done(&err)

	if caller.IsZero() {
		return nil, ErrMissingCaller
	}

	registry := domain.Registry{
		ID:        uuid.NewString(),
		Owner:     caller,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateRegistry(ctx, registry); err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}

	s.metrics.ObserveDeploy()
	s.logger.Infow("registry deployed", "registry", registry.ID, "owner", caller.String())
	return &registry, nil
}

func (s *RegistryService) Registry(ctx context.Context, registryID string) (_ *domain.Registry, err error) {
	ctx, done := s.startSpan(ctx, "get_registry", attribute.String("registry", registryID))
	defer done(&err)

	registry, err := s.repo.GetRegistry(ctx, registryID)
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	if registry == nil {
		return nil, domain.ErrRegistryNotFound
	}
	return registry, nil
}

func (s *RegistryService) Owner(ctx context.Context, registryID string) (domain.Address, error) {
	registry, err := s.Registry(ctx, registryID)
	if err != nil {
		return domain.ZeroAddress, err
	}
	return registry.Owner, nil
}

// RegisterSeller appends seller to the registry on behalf of caller and
// returns the assigned index. A non-empty requestID makes the call
// idempotent: a repeat returns ErrDuplicateRequest without consuming an index.
func (s *RegistryService) RegisterSeller(ctx context.Context, requestID, registryID string, caller, seller domain.Address) (_ uint64, err error) {
	ctx, done := s.startSpan(ctx, "register_seller",
		attribute.String("registry", registryID),
		attribute.String("caller", caller.String()),
		attribute.String("seller", seller.String()),
	)
	defer done(&err)

	index, err := s.registerSeller(ctx, requestID, registryID, caller, seller)
	s.metrics.ObserveRegistration(registrationOutcome(err))
	if err != nil {
		s.logger.Debugw("seller registration rejected", "registry", registryID, "caller", caller.String(), "error", err)
		return 0, err
	}

	event := domain.SellerRegistered{
		RegistryID:   registryID,
		Index:        index,
		Seller:       seller,
		Owner:        caller,
		RegisteredAt: s.now().UTC(),
	}
	select {
	case s.eventQueue <- event:
		s.metrics.SetQueueDepth(len(s.eventQueue))
	case <-ctx.Done():
		s.logger.Warnw("seller registered but event dropped", "registry", registryID, "index", index, "error", ctx.Err())
	}

	s.logger.Infow("seller registered", "registry", registryID, "index", index, "seller", seller.String())
	return index, nil
}

func (s *RegistryService) registerSeller(ctx context.Context, requestID, registryID string, caller, seller domain.Address) (uint64, error) {
	if caller.IsZero() {
		return 0, ErrMissingCaller
	}
	if seller.IsZero() {
		return 0, fmt.Errorf("%w: seller must not be the zero address", domain.ErrInvalidAddress)
	}

	var idempotencyKey string
	if requestID != "" && s.cache != nil {
		// Scoped to the caller so another identity reusing a request ID is
		// still judged by the owner check.
		idempotencyKey = fmt.Sprintf("register:%s:%s:%s", registryID, caller.Hex(), requestID)

		ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return 0, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return 0, ErrDuplicateRequest
		}
	}

	index, err := s.repo.AppendSeller(ctx, registryID, caller, seller)
	if err != nil {
		if idempotencyKey != "" {
			// Release so the client may retry with the same request ID.
			if releaseErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKey); releaseErr != nil {
				s.logger.Errorw("failed to release idempotency key", "key", idempotencyKey, "error", releaseErr)
			}
		}
		return 0, err
	}
	return index, nil
}

// Sellers returns the seller at index, or domain.ZeroAddress when the index
// has not been assigned.
func (s *RegistryService) Sellers(ctx context.Context, registryID string, index uint64) (_ domain.Address, err error) {
	ctx, done := s.startSpan(ctx, "sellers",
		attribute.String("registry", registryID),
		attribute.Int64("index", int64(index)),
	)
	defer done(&err)

	seller, err := s.repo.GetSeller(ctx, registryID, index)
	if err != nil {
		return domain.ZeroAddress, err
	}
	return seller, nil
}

func (s *RegistryService) Events() <-chan domain.SellerRegistered {
	return s.eventQueue
}

func (s *RegistryService) Close() {
	close(s.eventQueue)
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrUnauthorized):
		return metrics.OutcomeUnauthorized
	case errors.Is(err, ErrDuplicateRequest):
		return metrics.OutcomeDuplicate
	case errors.Is(err, domain.ErrInvalidAddress), errors.Is(err, ErrMissingCaller):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrRegistryNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
