package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "virtualassoc"

// AssociationMetrics records batch resolution activity. It satisfies
// assoc.Observer.
type AssociationMetrics struct {
	fetches        metric.Int64Counter
	fetchKeys      metric.Int64Histogram
	fetchedObjects metric.Int64Histogram
	fetchDuration  metric.Float64Histogram
	missing        metric.Int64Counter
	recordsSaved   metric.Int64Counter
}

// NewAssociationMetrics creates the instruments on the given meter provider.
func NewAssociationMetrics(provider metric.MeterProvider) (*AssociationMetrics, error) {
	meter := provider.Meter(meterName)

	fetches, err := meter.Int64Counter(
		"virtualassoc.assoc.fetches",
		metric.WithDescription("Number of batch fetches issued for associations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetches counter: %w", err)
	}

	fetchKeys, err := meter.Int64Histogram(
		"virtualassoc.assoc.fetch_keys",
		metric.WithDescription("Number of distinct keys passed to a batch fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch keys histogram: %w", err)
	}

	fetchedObjects, err := meter.Int64Histogram(
		"virtualassoc.assoc.fetched_objects",
		metric.WithDescription("Number of objects returned by a batch fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetched objects histogram: %w", err)
	}

	fetchDuration, err := meter.Float64Histogram(
		"virtualassoc.assoc.fetch.duration",
		metric.WithDescription("Duration of batch fetches in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch duration histogram: %w", err)
	}

	missing, err := meter.Int64Counter(
		"virtualassoc.assoc.missing",
		metric.WithDescription("Number of foreign keys with no matching fetched object"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create missing counter: %w", err)
	}

	recordsSaved, err := meter.Int64Counter(
		"virtualassoc.assoc.records_saved",
		metric.WithDescription("Number of per-record fetches avoided by batching"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create records saved counter: %w", err)
	}

	return &AssociationMetrics{
		fetches:        fetches,
		fetchKeys:      fetchKeys,
		fetchedObjects: fetchedObjects,
		fetchDuration:  fetchDuration,
		missing:        missing,
		recordsSaved:   recordsSaved,
	}, nil
}

func assocAttrs(typeName, association string, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{
		attribute.String("type", typeName),
		attribute.String("association", association),
	}, extra...)
	return metric.WithAttributes(attrs...)
}

// BatchFetched records one batch fetch and its outcome.
func (m *AssociationMetrics) BatchFetched(ctx context.Context, typeName, association string, keys, objects int, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetches.Add(ctx, 1, assocAttrs(typeName, association, attribute.String("outcome", outcome)))
	m.fetchKeys.Record(ctx, int64(keys), assocAttrs(typeName, association))
	m.fetchDuration.Record(ctx, float64(duration.Microseconds())/1000, assocAttrs(typeName, association))
	if err == nil {
		m.fetchedObjects.Record(ctx, int64(objects), assocAttrs(typeName, association))
	}
}

// RecordsResolved records how many records one fetch served.
func (m *AssociationMetrics) RecordsResolved(ctx context.Context, typeName, association string, records int) {
	if records <= 1 {
		return
	}
	m.recordsSaved.Add(ctx, int64(records-1), assocAttrs(typeName, association))
}

// Missing records a foreign key that matched no fetched object.
func (m *AssociationMetrics) Missing(ctx context.Context, typeName, association string, raised bool) {
	m.missing.Add(ctx, 1, assocAttrs(typeName, association, attribute.Bool("raised", raised)))
}

// InitMetrics creates association metrics on the global meter provider.
func InitMetrics(logger *slog.Logger) (*AssociationMetrics, error) {
	metrics, err := NewAssociationMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize association metrics: %w", err)
	}

	logger.Info("association metrics initialized")
	return metrics, nil
}
