// Package schedule computes fire instants for recurring jobs.
//
// A [Recurrence] answers one question: given an instant, when does this
// rule next match? [Recurrence.NextDate] always returns a value strictly
// greater than its input, evaluated in the rule's own calendar and
// timezone, so callers can chain calls to walk forward through every
// firing between two instants.
//
// Five constructors cover the rules a scheduler.Scheduler entry can use:
//
//	schedule.NewEveryMinute(43)                          // 21:10:43, 21:11:43, ...
//	schedule.NewHourly(15)                                // xx:15:00 every hour
//	schedule.NewDaily(6, 15, time.UTC)                    // 06:15:00 every day
//	schedule.NewWeekly(time.Monday, 9, 0, time.UTC)       // 09:00:00 every Monday
//	schedule.NewMonthly(31, 0, 0, time.UTC)               // the 31st, skipping short months
//
// [Monthly] skips calendar months that lack the configured day (e.g. day
// 31 in April) rather than clamping to the last day of the month.
//
// Each constructor compiles its rule to a six-field (seconds-enabled)
// github.com/robfig/cron/v3 expression with a CRON_TZ= prefix and parses
// it once; NextDate is a thin call to the resulting cron.Schedule.Next.
// All calendar, DST, and short-month arithmetic is that library's, not
// this package's.
package schedule
