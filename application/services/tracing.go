package services

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BajKull/Valks-backend/pkg/errors"
)

const tracerPrefix = "valks-backend.application."

// endSpan records the outcome of a command and ends its span. Domain
// rejections only tag the span; store and unexpected failures mark it
// as an error.
func endSpan(span trace.Span, err error) {
	if err != nil {
		code := errors.CodeOf(err)
		span.SetAttributes(attribute.String("error.code", code))
		if code == "" || errors.IsStoreUnavailable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
