package benchmark

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/governor/internal/testutil"
	"github.com/vnykmshr/governor/pkg/ratelimit/bucket"
	"github.com/vnykmshr/governor/pkg/sync/wakesignal"
)

// newBucket returns a bucket whose ticker never fires on its own.
func newBucket(b *testing.B, capacity int) (bucket.Limiter, *testutil.ManualClock) {
	clk := testutil.NewManualClock(time.Time{})
	limiter, err := bucket.NewWithConfigSafe(bucket.Config{
		Capacity:      capacity,
		Interval:      time.Second,
		InitialTokens: -1,
		Clock:         clk,
	})
	if err != nil {
		b.Fatalf("failed to create bucket: %v", err)
	}
	b.Cleanup(func() { _ = limiter.Close() })
	return limiter, clk
}

// BenchmarkAcquireReturn measures the uncontended fast path.
func BenchmarkAcquireReturn(b *testing.B) {
	limiter, _ := newBucket(b, 1)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		granted, err := limiter.Acquire(ctx, 1)
		if err != nil {
			b.Fatal(err)
		}
		limiter.Return(granted)
	}
}

// BenchmarkAcquireReturnParallel measures gate contention.
func BenchmarkAcquireReturnParallel(b *testing.B) {
	for _, capacity := range []int{1, 8, 64} {
		b.Run(fmt.Sprintf("capacity-%d", capacity), func(b *testing.B) {
			limiter, _ := newBucket(b, capacity)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					granted, err := limiter.Acquire(ctx, 1)
					if err != nil {
						b.Error(err)
						return
					}
					limiter.Return(granted)
				}
			})
		})
	}
}

// BenchmarkReplenishWake measures one tick releasing a parked caller.
func BenchmarkReplenishWake(b *testing.B) {
	limiter, clk := newBucket(b, 1)
	ctx := context.Background()
	if _, err := limiter.Acquire(ctx, 1); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = limiter.Acquire(ctx, 1)
		}()
		for limiter.Waiting() == 0 {
			time.Sleep(time.Microsecond)
		}
		clk.Advance(time.Second)
		<-done
	}
}

// BenchmarkWakeSignal measures a notify and wait round trip.
func BenchmarkWakeSignal(b *testing.B) {
	s := wakesignal.New()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Notify()
		if err := s.Wait(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWakeSignalContended measures waiters racing for notifications.
func BenchmarkWakeSignalContended(b *testing.B) {
	s := wakesignal.New()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			s.Notify()
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = s.Wait(ctx)
		}
	})
	b.StopTimer()

	cancel()
	wg.Wait()
}
