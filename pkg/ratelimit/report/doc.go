/*
Package report publishes bucket replenishment reports.

A Reporter receives the bucket.Report produced at every tick. Reporters are
diagnostic: a bucket never reads anything back from them.

	rr, err := report.NewRedisReporter(report.RedisConfig{
		Client:  redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
		Channel: "governor.ticks",
	})
	if err != nil {
		log.Fatal(err)
	}

	limiter, err := bucket.NewWithConfigSafe(bucket.Config{
		Capacity:    10,
		Interval:    time.Second,
		OnReplenish: report.Hook("api", report.Multi(rr, report.NewLogReporter(logger)), time.Second, logger),
	})

Every published message is a JSON encoded Message. Subscribers can follow the
channel with redis-cli:

	redis-cli SUBSCRIBE governor.ticks
*/
package report
