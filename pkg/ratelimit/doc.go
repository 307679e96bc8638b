/*
Package ratelimit groups the governor rate limiting packages.

  - bucket: the interval token bucket itself
  - consumer: a worker pool that drains a bucket
  - report: per-tick reporters fed from bucket.Config.OnReplenish

A bucket resets its available count to capacity once per interval. Callers
take what is left, possibly less than they asked for, and park when nothing
is left until the next reset:

	limiter, err := bucket.NewSafe(100, time.Minute)
	if err != nil {
		log.Fatal(err)
	}
	defer limiter.Close()

	granted, err := limiter.Acquire(ctx, 30)

Workers sharing one bucket:

	pool, _ := consumer.New(consumer.Config{
		Limiter: limiter,
		Workers: []consumer.Worker{{Work: send}, {Work: send}},
	})
	err = pool.Run(ctx)

Reporting every tick to logs and Redis:

	hook := report.Hook("api", report.Multi(
		report.NewLogReporter(logger),
		redisReporter,
	), time.Second, logger)

	limiter, _ = bucket.NewWithConfigSafe(bucket.Config{
		Capacity:    100,
		Interval:    time.Minute,
		OnReplenish: hook,
	})
*/
package ratelimit
