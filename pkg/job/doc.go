// Package job runs background tasks on River, a Postgres-backed queue.
//
// A task is any type with Name and Handle methods; the JSON payload is
// decoded into the Handle parameter type. Periodic tasks add a cron
// Schedule:
//
//	app := trellis.New(
//	    trellis.WithJobs(pool,
//	        job.WithTask[cms.RebuildPayload](cms.NewRebuildRoutesTask(site)),
//	        job.WithScheduledTask(cms.NewRebuildRoutesSchedule(site, "@every 10m")),
//	    ),
//	)
//
// Handlers enqueue through the request context:
//
//	_ = c.Enqueue(cms.RebuildRoutesTaskName, cms.RebuildPayload{}, job.UniqueFor(time.Minute))
//
// The River schema must exist before the manager starts; Migrate creates it
// (the trellis migrate command runs it).
package job
