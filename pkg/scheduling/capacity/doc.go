/*
Package capacity changes a bucket's capacity on a cron schedule.

A Plan is a list of changes, each a cron expression and the capacity to set
when it fires. Expressions take five fields, or six with a leading seconds
field, and descriptors such as @hourly or @every 15m:

	plan, err := capacity.New(capacity.Config{
		Name:   "office-hours",
		Target: limiter,
		Changes: []capacity.Change{
			{Schedule: "0 9 * * MON-FRI", Capacity: 100},
			{Schedule: "0 18 * * MON-FRI", Capacity: 10},
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	plan.Start()
	defer plan.Stop()

Changes go through SetCapacity, so a bucket picks them up at its next tick.
ParseChange reads the "<expression>=<capacity>" form used on the command line.
*/
package capacity
