/*
Package governor provides an interval token bucket for Go applications that
need to share a fixed budget of work per period between concurrent callers.

Rate Limiting (pkg/ratelimit):
  - bucket: Interval token bucket with partial grants, returns and FIFO waiters
  - consumer: Worker pool draining a shared bucket, with per-worker rates
  - report: Per-tick reporting to zap logs and Redis pub/sub

Scheduling (pkg/scheduling):
  - capacity: Cron-scheduled capacity changes for a bucket

Synchronization (pkg/sync):
  - wakesignal: Auto-reset wake signal with cancellable FIFO waiters

Example usage:

	import "github.com/vnykmshr/governor/pkg/ratelimit/bucket"

	limiter, _ := bucket.NewSafe(10, time.Second) // 10 tokens every second
	defer limiter.Close()

	granted, err := limiter.Acquire(ctx, 4)
	if err != nil {
		return err
	}
	// use granted tokens, give back what was not needed
	limiter.Return(unused)
*/
package governor
