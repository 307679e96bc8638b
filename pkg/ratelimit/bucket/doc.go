/*
Package bucket provides a fixed-interval token bucket.

A bucket holds up to Capacity tokens. Every Interval a ticker owned by the
bucket resets the available count to Capacity. Consumers take tokens with
Acquire before doing throttled work:

	limiter, err := bucket.NewSafe(10, time.Second) // 10 tokens per second
	if err != nil {
		log.Fatal(err)
	}
	defer limiter.Close()

	granted, err := limiter.Acquire(ctx, 3)
	if err != nil {
		return err // canceled or closed
	}
	process(granted)

Acquire grants min(requested, available) tokens. Requests above capacity are
clamped to capacity rather than blocking forever. When the bucket is empty the
caller blocks until the next replenishment; callers queued behind it wait for
their turn and are served one by one in arrival order, so one tick can
satisfy several callers.

Return credits back tokens that were reserved but not used. By default the
count never rises above capacity; Config.Overshoot allows a bounded burst.

SetCapacity takes effect at the next tick. Close stops the ticker and fails
every pending and future Acquire with errors.ErrDisposed.

Cancellation:

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	if _, err := limiter.Acquire(ctx, 1); errors.IsCanceled(err) {
		// No tokens were taken.
	}

Observability:

	limiter, err := bucket.NewWithConfigSafe(bucket.Config{
		Capacity:      100,
		Interval:      time.Second,
		InitialTokens: -1,
		Logger:        logger,
		OnReplenish: func(r bucket.Report) {
			fmt.Printf("granted %d of %d\n", r.Granted, r.Capacity)
		},
	})

NewWithMetrics and NewWithConfigAndMetrics wrap a bucket with Prometheus
metrics.
*/
package bucket
