package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BreakerSettings configures the circuit breaker shared by every store call
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerSettings returns the default breaker configuration
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// executor runs DynamoDB calls inside a span and the circuit breaker
type executor struct {
	table   string
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *zap.Logger
}

func newExecutor(table string, settings BreakerSettings, tracer trace.Tracer, logger *zap.Logger) *executor {
	if tracer == nil {
		tracer = otel.Tracer("valks/dynamodb")
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dynamodb-" + table,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A failed condition is a domain answer, not an unhealthy table
		IsSuccessful: func(err error) bool {
			return err == nil || isConditionFailed(err)
		},
	})
	return &executor{table: table, breaker: breaker, tracer: tracer, logger: logger}
}

// do runs fn for the named operation
func (e *executor) do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, "dynamodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dynamodb"),
			attribute.String("db.operation", operation),
			attribute.String("aws.dynamodb.table_names", e.table),
		),
	)
	defer span.End()

	start := time.Now()
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("DynamoDB call failed",
			zap.String("operation", operation),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("dynamodb %s: %w", operation, err)
	}

	e.logger.Debug("DynamoDB call completed",
		zap.String("operation", operation),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// State exposes the breaker state for readiness checks
func (e *executor) state() gobreaker.State {
	return e.breaker.State()
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
