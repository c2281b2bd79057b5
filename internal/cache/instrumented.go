package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrCacheName = attribute.Key("iot.cache.name")
	attrOperation = attribute.Key("iot.cache.operation")
	attrOutcome   = attribute.Key("iot.cache.outcome")
)

var (
	metricsOnce     sync.Once
	cacheOperations metric.Int64Counter
	cacheDuration   metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/leonardo-iot/iot-sdk-go/internal/cache")

		var err error
		cacheOperations, err = meter.Int64Counter(
			"iot.cache.operations",
			metric.WithDescription("SDK cache operations (key sets, tenant clients) by outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}

		cacheDuration, err = meter.Float64Histogram(
			"iot.cache.operation.duration",
			metric.WithDescription("SDK cache operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Instrumented wraps a Cache, counting and timing each operation under the
// cache's name. Outcomes are also set on the active span.
type Instrumented[T any] struct {
	wrapped Cache[T]
	name    string
}

// NewInstrumented creates an instrumented cache wrapper. The name identifies
// the cache in metrics, e.g. "xsuaa.token_keys".
func NewInstrumented[T any](cache Cache[T], name string) *Instrumented[T] {
	initMetrics()
	return &Instrumented[T]{
		wrapped: cache,
		name:    name,
	}
}

// Get looks up key, recording a hit, miss or error.
func (i *Instrumented[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var (
		value T
		found bool
	)
	err := i.observe(ctx, "get", func() (string, error) {
		var err error
		value, found, err = i.wrapped.Get(ctx, key)
		if found {
			return "hit", err
		}
		return "miss", err
	})
	return value, found, err
}

// Set stores value under key.
func (i *Instrumented[T]) Set(ctx context.Context, key string, value T) error {
	return i.observe(ctx, "set", func() (string, error) {
		return "success", i.wrapped.Set(ctx, key, value)
	})
}

// Invalidate removes key. Removing an absent key is not an error.
func (i *Instrumented[T]) Invalidate(ctx context.Context, key string) error {
	return i.observe(ctx, "invalidate", func() (string, error) {
		return "success", i.wrapped.Invalidate(ctx, key)
	})
}

// Close releases the wrapped cache. It is not recorded.
func (i *Instrumented[T]) Close() error {
	return i.wrapped.Close()
}

// observe runs op and records its outcome and duration. An error from op
// always records the "error" outcome.
func (i *Instrumented[T]) observe(ctx context.Context, operation string, op func() (string, error)) error {
	start := time.Now()
	outcome, err := op()
	duration := time.Since(start)

	if err != nil {
		outcome = "error"
	}

	if cacheOperations != nil {
		cacheOperations.Add(ctx, 1, metric.WithAttributes(
			attrCacheName.String(i.name),
			attrOperation.String(operation),
			attrOutcome.String(outcome),
		))
	}
	if cacheDuration != nil {
		cacheDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attrCacheName.String(i.name),
			attrOperation.String(operation),
		))
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attrCacheName.String(i.name),
		attribute.String("iot.cache."+operation+".outcome", outcome),
		attribute.Float64("iot.cache."+operation+".duration", duration.Seconds()),
	)

	return err
}
