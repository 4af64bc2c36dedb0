package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/Kronixion/matval/internal/catalog/domain"
	"github.com/Kronixion/matval/internal/identity"
	"github.com/Kronixion/matval/internal/listing"
	"github.com/Kronixion/matval/internal/normalize"
	"github.com/Kronixion/matval/internal/observability/logger"
	"github.com/Kronixion/matval/internal/observability/metrics"
	"github.com/Kronixion/matval/internal/observability/tracing"
	"github.com/Kronixion/matval/internal/source"
	pkgdb "github.com/Kronixion/matval/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrBackendUnavailable is returned when storage cannot be reached even after a retry. No
// further item can make progress, so callers should stop.
var ErrBackendUnavailable = errors.New("backend_unavailable")

type Status string

const (
	StatusAck    Status = metrics.StatusAck
	StatusReject Status = metrics.StatusReject
)

type Reason string

const (
	ReasonNormalization Reason = "normalization"
	ReasonResolution    Reason = "resolution"
	ReasonStorage       Reason = "storage"
)

// Outcome is the per-item answer of the pipeline. A rejected item carries the reason and
// the error that caused it; an acknowledged item carries the upsert result.
type Outcome struct {
	Status Status
	Reason Reason
	Err    error
	Result listing.Result
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Normalizer *normalize.Normalizer
	Resolver   *identity.Resolver
	Writer     *listing.Writer
	Metrics    *metrics.IngestMetrics `optional:"true"`
	Log        *zap.Logger
}

// Pipeline runs normalization, identity resolution and the listing upsert for one raw item
// at a time. Everything after normalization happens in one transaction per item.
type Pipeline struct {
	db         *gorm.DB
	normalizer *normalize.Normalizer
	resolver   *identity.Resolver
	writer     *listing.Writer
	metrics    *metrics.IngestMetrics
	log        *zap.Logger
	tracer     trace.Tracer
}

func New(p Params) *Pipeline {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		db:         p.DB,
		normalizer: p.Normalizer,
		resolver:   p.Resolver,
		writer:     p.Writer,
		metrics:    p.Metrics,
		log:        log.Named("ingest.pipeline"),
		tracer:     tracing.Tracer("ingest"),
	}
}

// Process handles one raw item. Item-level failures are reported in the Outcome and never
// returned as errors; the returned error is reserved for conditions that stop the caller:
// ErrBackendUnavailable and context cancellation.
func (p *Pipeline) Process(ctx context.Context, item source.Item) (Outcome, error) {
	start := time.Now()
	store := item.StoreName()
	ctx = logger.ContextWithStore(ctx, store)
	ctx, span := p.tracer.Start(ctx, "ingest.process", trace.WithAttributes(attribute.String("store", store)))
	defer span.End()

	canonical, err := p.normalizer.Normalize(item)
	if err != nil {
		return p.reject(ctx, span, start, store, "", ReasonNormalization, err), nil
	}
	span.SetAttributes(attribute.String("source_id", canonical.SourceID))

	result, err := p.write(ctx, canonical)
	if err != nil && isRetryable(err) && ctx.Err() == nil {
		p.metrics.IncRetry(store)
		logger.WithContext(ctx, p.log).Info("retrying item",
			zap.String("source_id", canonical.SourceID),
			zap.Error(err),
		)
		result, err = p.write(ctx, canonical)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "canceled")
			return Outcome{}, ctxErr
		}
		if pkgdb.IsConnectionErr(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "backend unavailable")
			logger.WithContext(ctx, p.log).Error("storage backend unavailable",
				zap.String("source_id", canonical.SourceID),
				zap.Error(err),
			)
			p.metrics.ObserveItem(store, metrics.StatusReject, string(ReasonStorage), time.Since(start))
			return Outcome{Status: StatusReject, Reason: ReasonStorage, Err: err}, errors.Join(ErrBackendUnavailable, err)
		}

		reason := ReasonStorage
		var rerr *identity.ResolutionError
		if errors.As(err, &rerr) {
			reason = ReasonResolution
		}
		return p.reject(ctx, span, start, store, canonical.SourceID, reason, err), nil
	}

	p.metrics.ObserveOutcome(store, string(result.Outcome), result.HistoryRecorded)
	p.metrics.ObserveItem(store, metrics.StatusAck, "", time.Since(start))
	span.SetAttributes(
		attribute.String("outcome", string(result.Outcome)),
		attribute.Bool("history_recorded", result.HistoryRecorded),
	)
	logger.WithContext(ctx, p.log).Debug("item stored",
		zap.String("source_id", canonical.SourceID),
		zap.String("outcome", string(result.Outcome)),
		zap.Bool("history_recorded", result.HistoryRecorded),
	)
	return Outcome{Status: StatusAck, Result: result}, nil
}

// write runs resolution and the upsert in one transaction. Resolved IDs are only handed to
// the identity cache after the commit succeeded.
func (p *Pipeline) write(ctx context.Context, item normalize.CanonicalItem) (listing.Result, error) {
	var (
		resolved *identity.Identity
		result   listing.Result
	)
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := p.resolver.Resolve(ctx, tx, item)
		if err != nil {
			return err
		}
		res, err := p.writer.Upsert(ctx, tx, id, item)
		if err != nil {
			return err
		}
		resolved, result = id, res
		return nil
	})
	if err != nil {
		return listing.Result{}, err
	}
	p.resolver.Remember(ctx, resolved)
	return result, nil
}

func isRetryable(err error) bool {
	var serr *domain.StorageError
	return errors.As(err, &serr) || pkgdb.IsConnectionErr(err)
}

func (p *Pipeline) reject(ctx context.Context, span trace.Span, start time.Time, store, sourceID string, reason Reason, err error) Outcome {
	fields := []zap.Field{
		zap.String("reason", string(reason)),
		zap.String("source_id", sourceID),
	}

	var nerr *normalize.Error
	var rerr *identity.ResolutionError
	switch {
	case errors.As(err, &nerr):
		fields[1] = zap.String("source_id", nerr.SourceID)
		fields = append(fields, zap.String("field", nerr.Field), zap.String("value", nerr.Value))
	case errors.As(err, &rerr):
		fields = append(fields, zap.String("field", rerr.Entity), zap.String("value", rerr.Key))
	}
	fields = append(fields, zap.Error(err))

	span.RecordError(err)
	span.SetStatus(codes.Error, string(reason))
	logger.WithContext(ctx, p.log).Warn("item rejected", fields...)
	p.metrics.ObserveItem(store, metrics.StatusReject, string(reason), time.Since(start))

	return Outcome{Status: StatusReject, Reason: reason, Err: err}
}
