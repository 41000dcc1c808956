// Package chronopool provides the worker pool and cron-style scheduler
// core of a background-job framework for Go.
//
// chronopool is designed as a library, not a service. Import it, pick a
// [driver.Driver] (memory for tests, Redis or PostgreSQL for production),
// register job handlers with a [job.Registry], and run a [worker.Pool]
// alongside an optional [scheduler.Scheduler].
//
// # Quick Start
//
//	reg := job.NewRegistry()
//	job.RegisterDefinition(reg, job.NewDefinition("send-email", sendEmail))
//
//	drv := memory.New()
//	q := chronopool.NewQueue(drv, reg, nil, nil)
//
//	pool := worker.NewPool(drv, reg, worker.WithConcurrency(10))
//	go pool.Run(ctx)
//
//	q.Push(ctx, "send-email", payload)
//
// # Architecture
//
// The core does not persist anything itself. A [driver.Driver]
// implementation owns durability (push, iterate, finish, fail, and a
// small metadata KV); chronopool drives the driver's iterator with a
// bounded number of concurrent workers, decodes envelopes through the
// [job.Registry], retries failed jobs by re-pushing them with a computed
// [backoff.Strategy] delay, and reports lifecycle events through an
// [ext.Registry] that the [metrics] package binds to OpenTelemetry
// instruments.
//
// The [scheduler.Scheduler] is a peer service: it fires recurring
// [scheduler.ScheduleEntry] values through the same driver's Push, using
// only a single persisted cursor to survive restarts.
//
// [PushMiddleware] wraps [Queue.Push] itself, the producer-side
// counterpart to the worker pool's execute [middleware.Middleware] — a
// validation or audit-logging hook can inspect a job's name and
// parameters before it is enqueued and observe its assigned JobID once
// the push completes.
package chronopool
