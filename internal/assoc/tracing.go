package assoc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Observer receives resolution measurements. Implementations must be safe
// for concurrent use; resolvers from different views may share one.
type Observer interface {
	// BatchFetched is called after every bulk fetch attempt.
	BatchFetched(ctx context.Context, typeName, association string, keys, objects int, duration time.Duration, err error)
	// RecordsResolved is called after an association resolved over records
	// records with a single fetch.
	RecordsResolved(ctx context.Context, typeName, association string, records int)
	// Missing is called for each foreign key that matched no fetched object.
	Missing(ctx context.Context, typeName, association string, raised bool)
}

type nopObserver struct{}

func (nopObserver) BatchFetched(context.Context, string, string, int, int, time.Duration, error) {}
func (nopObserver) RecordsResolved(context.Context, string, string, int)                         {}
func (nopObserver) Missing(context.Context, string, string, bool)                                {}

func startResolveSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("virtualassoc/assoc")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func finishResolveSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		if kind, ok := KindOf(err); ok {
			outcome = kind.String()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("assoc.outcome", outcome))
	span.End()
}
