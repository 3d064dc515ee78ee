// Package service implements registration submission and the read-only
// report and search queries.
package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eventreg/internal/platform/metrics"
	"eventreg/internal/registration/events"
	"eventreg/internal/registration/models"
	"eventreg/internal/registration/ports"
	"eventreg/internal/registration/validation"
	dErrors "eventreg/pkg/domain-errors"
	"eventreg/pkg/platform/tx"
	"eventreg/pkg/requestcontext"
)

const (
	defaultCounterKey = "registrations"
	publishTimeout    = 2 * time.Second
	tracerName        = "eventreg/registration"
)

// MsgProcessingFailed is the only detail clients see for persistence failures.
const MsgProcessingFailed = "processing failed"

// Service coordinates validation, sequence allocation and queries.
type Service struct {
	store      ports.Store
	runner     *tx.Runner
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	counterKey string
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRunner sets the retry policy for allocation transactions.
func WithRunner(r *tx.Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithPublisher sets where registration.created events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithCounterKey names the counter document sequences are drawn from.
func WithCounterKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.counterKey = key
		}
	}
}

// WithClock overrides the createdAt source when the request carries no time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New builds a Service over store.
func New(store ports.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		publisher:  events.NopPublisher{},
		logger:     slog.Default(),
		counterKey: defaultCounterKey,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.runner == nil {
		s.runner = tx.NewRunner(tx.WithObserver(s.metrics.ObserveTxAttempt))
	}
	return s
}

// Register validates raw and stores it under the next sequence number. The
// counter bump and the record write commit together or not at all.
func (s *Service) Register(ctx context.Context, raw any, meta models.SubmissionMeta) (*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Register")
	defer span.End()

	rec, err := validation.Validate(raw)
	if err != nil {
		s.metrics.IncrementRejected("validation")
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	meta.Apply(rec)

	start := time.Now()
	committed, err := s.allocate(ctx, rec)
	s.metrics.ObserveTxDuration(time.Since(start))
	if err != nil {
		s.metrics.IncrementRejected("persistence")
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation failed")
		s.logger.ErrorContext(ctx, "registration allocation failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, persistenceError(err)
	}

	s.metrics.IncrementCreated()
	span.SetAttributes(
		attribute.String("registration.id", committed.ID),
		attribute.Int64("registration.sequence", committed.Sequence),
	)
	s.publish(ctx, committed)
	return committed, nil
}

// allocate runs the counter bump and insert as one transaction, retried by
// the runner on conflicts. Each attempt starts from a fresh copy of rec.
func (s *Service) allocate(ctx context.Context, rec *models.Registration) (*models.Registration, error) {
	var committed *models.Registration
	err := s.runner.Run(ctx, func(ctx context.Context) error {
		committed = nil
		return s.store.RunInTx(ctx, func(t ports.Tx) error {
			current, ok, err := t.Counter(ctx, s.counterKey)
			if err != nil {
				return err
			}

			next := int64(1)
			if ok {
				next = current + 1
				if err := t.UpdateCounter(ctx, s.counterKey, next); err != nil {
					return err
				}
			} else if err := t.InitCounter(ctx, s.counterKey); err != nil {
				return err
			}

			candidate := rec.Clone()
			candidate.ID = t.NewID()
			candidate.Sequence = next
			if err := t.Insert(ctx, candidate); err != nil {
				return err
			}
			committed = candidate
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// publish is best-effort and bounded so a slow broker cannot stall the response.
func (s *Service) publish(ctx context.Context, r *models.Registration) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, events.NewCreated(r)); err != nil {
		s.logger.WarnContext(ctx, "registration event not published",
			"error", err,
			"registration_id", r.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// List returns up to limit registrations ordered by sequence.
func (s *Service) List(ctx context.Context, limit int) ([]*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.List")
	defer span.End()

	limit = models.ClampLimit(limit, models.MaxListLimit)
	span.SetAttributes(attribute.Int("query.limit", limit))

	items, err := s.store.ListBySequence(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, MsgProcessingFailed)
	}
	sortBySequence(items)
	return items, nil
}

// FindByName returns registrations whose name starts with q.Prefix,
// optionally restricted to an exact birth date, ordered by sequence.
func (s *Service) FindByName(ctx context.Context, q models.NameQuery) ([]*models.Registration, error) {
	ctx, span := s.tracer.Start(ctx, "registration.FindByName")
	defer span.End()

	q.Prefix = strings.TrimSpace(q.Prefix)
	q.BirthDate = strings.TrimSpace(q.BirthDate)
	if !models.PrefixLongEnough(q.Prefix) {
		span.SetStatus(codes.Error, "prefix too short")
		return nil, dErrors.New(dErrors.CodeBadRequest, validation.MsgNamePrefixLength)
	}
	q.Limit = models.ClampLimit(q.Limit, models.MaxSearchLimit)
	span.SetAttributes(
		attribute.Int("query.limit", q.Limit),
		attribute.Bool("query.birth_date", q.BirthDate != ""),
	)

	items, err := s.store.FindByNamePrefix(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, MsgProcessingFailed)
	}
	sortBySequence(items)
	return items, nil
}

// Ping reports store health.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func sortBySequence(items []*models.Registration) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
}

// persistenceError hides store detail from clients. A timed-out caller gets
// the same answer: the last attempt may or may not have committed.
func persistenceError(err error) error {
	return dErrors.Wrap(err, dErrors.CodeInternal, MsgProcessingFailed)
}
