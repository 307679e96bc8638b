package bucket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/governor/pkg/common/errors"
	"github.com/vnykmshr/governor/pkg/metrics"
)

// MetricsBucket wraps a Limiter with Prometheus metrics collection.
type MetricsBucket struct {
	limiter  *tokenBucket
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var (
	_ Limiter                = (*MetricsBucket)(nil)
	_ metrics.Instrumentable = (*MetricsBucket)(nil)
)

// NewWithMetrics creates a full bucket with metrics enabled.
func NewWithMetrics(capacity int, interval time.Duration, name string) (Limiter, error) {
	// Each bucket created here gets a private registry.
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{
		Capacity:      capacity,
		Interval:      interval,
		InitialTokens: -1,
		Name:          name,
	}, name, config)
}

// NewWithConfigAndMetrics creates a bucket with custom config and metrics.
// Replenishment metrics are recorded through config.OnReplenish, which still
// receives every report.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Limiter, error) {
	if !metricsConfig.Enabled {
		return NewWithConfigSafe(config)
	}

	ml := &MetricsBucket{name: name}
	ml.registry.Store(metricsConfig.Resolve())
	ml.enabled.Store(true)
	if config.Name == "" {
		config.Name = name
	}

	next := config.OnReplenish
	config.OnReplenish = func(r Report) {
		ml.observeReplenish(r)
		if next != nil {
			next(r)
		}
	}

	baseLimiter, err := NewWithConfigSafe(config)
	if err != nil {
		return nil, err
	}
	ml.limiter = baseLimiter.(*tokenBucket)
	ml.updateGauges()

	return ml, nil
}

// Acquire takes up to count tokens and records the outcome.
func (ml *MetricsBucket) Acquire(ctx context.Context, count int) (int, error) {
	start := time.Now()

	granted, err := ml.limiter.Acquire(ctx, count)

	if ml.enabled.Load() && count > 0 {
		registry := ml.registry.Load()
		registry.BucketRequested.WithLabelValues(ml.name).Add(float64(count))
		registry.BucketWaitTime.WithLabelValues(ml.name).Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			registry.BucketGranted.WithLabelValues(ml.name).Add(float64(granted))
		case errors.IsCanceled(err):
			registry.BucketAborted.WithLabelValues(ml.name, "canceled").Inc()
		default:
			registry.BucketAborted.WithLabelValues(ml.name, "disposed").Inc()
		}

		ml.updateGauges()
	}

	return granted, err
}

// Return credits unused tokens and records how many were accepted.
func (ml *MetricsBucket) Return(count int) {
	credited := ml.limiter.credit(count)

	if ml.enabled.Load() && credited > 0 {
		ml.registry.Load().BucketReturned.WithLabelValues(ml.name).Add(float64(credited))
		ml.updateGauges()
	}
}

// SetCapacity schedules a new capacity.
func (ml *MetricsBucket) SetCapacity(capacity int) error {
	if err := ml.limiter.SetCapacity(capacity); err != nil {
		return err
	}
	if ml.enabled.Load() {
		ml.registry.Load().BucketCapacity.WithLabelValues(ml.name).Set(float64(capacity))
	}
	return nil
}

// Capacity returns the configured capacity.
func (ml *MetricsBucket) Capacity() int {
	return ml.limiter.Capacity()
}

// Available returns the number of tokens currently available.
func (ml *MetricsBucket) Available() int {
	return ml.limiter.Available()
}

// Waiting returns the number of blocked Acquire calls.
func (ml *MetricsBucket) Waiting() int {
	return ml.limiter.Waiting()
}

// Interval returns the replenishment period.
func (ml *MetricsBucket) Interval() time.Duration {
	return ml.limiter.Interval()
}

// Close closes the wrapped bucket.
func (ml *MetricsBucket) Close() error {
	return ml.limiter.Close()
}

// EnableMetrics enables metrics collection.
func (ml *MetricsBucket) EnableMetrics(config metrics.Config) error {
	if config.Registry != nil {
		ml.registry.Store(metrics.NewRegistry(config.Registry))
	}
	ml.enabled.Store(config.Enabled)

	return nil
}

// DisableMetrics disables metrics collection.
func (ml *MetricsBucket) DisableMetrics() {
	ml.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ml *MetricsBucket) MetricsEnabled() bool {
	return ml.enabled.Load()
}

func (ml *MetricsBucket) observeReplenish(r Report) {
	if !ml.enabled.Load() {
		return
	}
	registry := ml.registry.Load()
	registry.BucketReplenishments.WithLabelValues(ml.name).Inc()
	registry.BucketTokens.WithLabelValues(ml.name).Set(float64(r.Available))
	registry.BucketCapacity.WithLabelValues(ml.name).Set(float64(r.Capacity))
	registry.BucketWaiting.WithLabelValues(ml.name).Set(float64(r.Waiting))
}

func (ml *MetricsBucket) updateGauges() {
	registry := ml.registry.Load()
	registry.BucketTokens.WithLabelValues(ml.name).Set(float64(ml.limiter.Available()))
	registry.BucketCapacity.WithLabelValues(ml.name).Set(float64(ml.limiter.Capacity()))
}
