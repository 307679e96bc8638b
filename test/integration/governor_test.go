// Package integration contains integration tests that verify cross-package functionality.
// These tests ensure that different components work together correctly in realistic scenarios.
package integration

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/governor/internal/testutil"
	"github.com/vnykmshr/governor/pkg/ratelimit/bucket"
	"github.com/vnykmshr/governor/pkg/ratelimit/consumer"
	"github.com/vnykmshr/governor/pkg/ratelimit/report"
	"github.com/vnykmshr/governor/pkg/scheduling/capacity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func totalUnits(p *consumer.Pool) int64 {
	var total int64
	for _, s := range p.Stats() {
		total += s.Units
	}
	return total
}

// TestPoolWithCapacityPlan drives a shared bucket through a consumer pool,
// a scheduled capacity change and tick reporting.
func TestPoolWithCapacityPlan(t *testing.T) {
	clk := testutil.NewManualClock(time.Time{})
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	reports := make(chan bucket.Report, 16)
	hook := report.Hook("shared", report.NewLogReporter(logger), time.Second, logger)

	limiter, err := bucket.NewWithConfigSafe(bucket.Config{
		Capacity:      2,
		Interval:      time.Second,
		InitialTokens: -1,
		Clock:         clk,
		OnReplenish: func(r bucket.Report) {
			hook(r)
			reports <- r
		},
	})
	testutil.AssertNoError(t, err)
	defer limiter.Close()

	change, err := capacity.ParseChange("@hourly=4")
	testutil.AssertNoError(t, err)
	plan, err := capacity.New(capacity.Config{
		Name:    "integration",
		Target:  limiter,
		Changes: []capacity.Change{change},
		Logger:  logger,
	})
	testutil.AssertNoError(t, err)

	work := func(context.Context, int) error { return nil }
	pool, err := consumer.New(consumer.Config{
		Name:       "integration",
		Limiter:    limiter,
		Workers:    []consumer.Worker{{Work: work}, {Work: work}, {Work: work}},
		RateWindow: time.Hour,
		Clock:      clk,
		Logger:     logger,
	})
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	testutil.Eventually(t, "initial tokens consumed", func() bool { return totalUnits(pool) == 2 })

	plan.Apply(change)
	testutil.AssertEqual(t, limiter.Capacity(), 4)

	clk.Advance(time.Second)
	r := testutil.Receive[bucket.Report](t, reports)
	testutil.AssertEqual(t, r.Capacity, 4)
	testutil.AssertEqual(t, r.Granted, 2)

	testutil.Eventually(t, "second interval consumed", func() bool { return totalUnits(pool) == 6 })

	// No tokens beyond what two intervals provide.
	time.Sleep(50 * time.Millisecond)
	testutil.AssertEqual(t, totalUnits(pool), int64(6))

	cancel()
	testutil.AssertNoError(t, testutil.Receive[error](t, done))

	applied, failed := plan.Stats()
	testutil.AssertEqual(t, applied, 1)
	testutil.AssertEqual(t, failed, 0)
	testutil.AssertEqual(t, logs.FilterMessage("tick").Len(), 1)
	testutil.AssertEqual(t, logs.FilterMessage("capacity change applied").Len(), 1)
}

// TestPoolStopsOnClose verifies that closing the bucket ends every worker.
func TestPoolStopsOnClose(t *testing.T) {
	limiter, err := bucket.NewSafe(1, time.Hour)
	testutil.AssertNoError(t, err)

	pool, err := consumer.New(consumer.Config{
		Limiter: limiter,
		Workers: []consumer.Worker{
			{Work: func(context.Context, int) error { return nil }},
			{Work: func(context.Context, int) error { return nil }},
		},
	})
	testutil.AssertNoError(t, err)

	done := make(chan error, 1)
	go func() { done <- pool.Run(context.Background()) }()

	testutil.Eventually(t, "worker parked", func() bool { return limiter.Waiting() > 0 })
	testutil.AssertNoError(t, limiter.Close())
	testutil.AssertNoError(t, testutil.Receive[error](t, done))
}
