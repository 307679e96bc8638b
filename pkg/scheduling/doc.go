/*
Package scheduling provides time-based control for governor buckets.

The capacity subpackage changes a bucket's capacity on cron schedules:

	plan, err := capacity.New(capacity.Config{
		Name:   "office-hours",
		Target: limiter,
		Changes: []capacity.Change{
			{Schedule: "0 9 * * 1-5", Capacity: 50},
			{Schedule: "0 18 * * 1-5", Capacity: 5},
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	plan.Start()
	defer plan.Stop()

A change takes effect at the bucket's next replenishment.
*/
package scheduling
