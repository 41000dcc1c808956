// Package scheduler runs a fixed list of recurring jobs, pushing each
// onto a driver.Driver at its scheduled instant.
//
// A [Scheduler] is a peer service to worker.Pool: it shares the same
// driver.Driver and pushes ordinary job envelopes, so any worker.Pool
// consuming that driver executes them exactly like producer-pushed jobs.
// The scheduler itself never runs a handler.
//
// # Building a schedule
//
//	sched := scheduler.New(drv)
//	sched.AddJob("send-digest", DigestParams{},
//	    schedule.NewDaily(6, 0, time.UTC), scheduler.AccuracyLatest)
//	go sched.Run(ctx)
//
// # Restart behavior
//
// The scheduler persists a single cursor, jobScheduleLastDate, through
// the driver's metadata store. On startup it recomputes every entry's
// next fire time from that cursor and replays any firings missed while
// the process was down, according to each entry's [Accuracy] policy:
// [AccuracyAll] replays every missed instant in order; [AccuracyLatest]
// collapses them into a single firing.
package scheduler
