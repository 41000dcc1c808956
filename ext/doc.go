// Package ext defines the extension system chronopool uses to report
// lifecycle events without hardcoding what happens on them.
//
// Extensions are notified of job and scheduler events and can react to
// them — recording metrics, writing audit logs, etc. Each lifecycle hook
// is a separate interface so extensions opt in only to the events they
// care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnJobSucceeded(ctx context.Context, jobID id.JobID, name string, elapsed time.Duration) error {
//	    log.Printf("job %s (%s) succeeded in %s", jobID, name, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued] — job was accepted by the driver
//   - [JobStarted] — a worker began executing the job
//   - [JobSucceeded] — the handler returned nil
//   - [JobFailed] — terminal failure, no retries remain
//   - [JobRetried] — the handler failed and a retry was re-pushed, or a
//     job pulled before its DelayUntil was re-pushed unchanged
//   - [JobCancelled] — the handler's context was cancelled
//
// # Other Hooks
//
//   - [CronFired] — a schedule entry fired and its job was pushed
//   - [PoolStarted] — a worker.Pool began running with its configured concurrency
//   - [Shutdown] — the pool or scheduler is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged,
// never propagated.
package ext
