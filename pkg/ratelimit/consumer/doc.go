/*
Package consumer runs rate-limited workers against a shared bucket.

Each worker loops: acquire Request tokens from the bucket, then call Work with
the number granted. The pool stops when its context is done or the bucket is
closed.

	limiter, _ := bucket.NewSafe(1, time.Second)
	defer limiter.Close()

	pool, err := consumer.New(consumer.Config{
		Name:    "demo",
		Limiter: limiter,
		Workers: []consumer.Worker{
			{Name: "1", Work: process},
			{Name: "2", Work: process},
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	err = pool.Run(ctx)

Stats reports how many units every worker completed and its rate over the
last RateWindow. A Worker may also carry a Local limiter of its own; tokens
the shared bucket granted beyond that local limit are returned to it.
*/
package consumer
