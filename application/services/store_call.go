package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BajKull/Valks-backend/application/ports"
	"github.com/BajKull/Valks-backend/pkg/errors"
)

// DefaultStoreTimeout bounds a durable call when no timeout is configured
const DefaultStoreTimeout = 5 * time.Second

// storeCaller runs durable calls detached from the caller's cancellation,
// bounded by its own timeout, and maps failures to StoreUnavailable.
// A connection that closes mid-command must not abort a write whose
// in-memory half has already happened.
type storeCaller struct {
	timeout time.Duration
	metrics ports.Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

func newStoreCaller(timeout time.Duration, metrics ports.Metrics, logger *zap.Logger) storeCaller {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return storeCaller{
		timeout: timeout,
		metrics: metrics,
		tracer:  otel.Tracer(tracerPrefix + "store"),
		logger:  logger,
	}
}

func (c storeCaller) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "store."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("store.operation", operation)),
	)

	start := time.Now()
	err := fn(ctx)
	c.metrics.RecordStoreCall(operation, err, time.Since(start))
	if err != nil {
		err = errors.NewStoreUnavailable(operation, err)
		c.logger.Warn("Store call failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
	endSpan(span, err)
	return err
}
