package schedule

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Recurrence computes fire instants for a job schedule.
type Recurrence interface {
	// NextDate returns the earliest instant strictly after after that
	// matches the rule.
	NextDate(after time.Time) time.Time
}

// secondsParser accepts six mandatory fields (seconds through
// day-of-week), the layout every Recurrence in this package generates.
var secondsParser = cronlib.NewParser(
	cronlib.Second | cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// cronRecurrence adapts a parsed robfig/cron Schedule to Recurrence. All
// calendar, DST, and leap-year arithmetic — including skipping months
// that lack a given day of month, which a standard cron day-of-month
// field already does by rolling forward day by day — is delegated to it.
// This package's job is only to translate each rule into the right cron
// expression, with a CRON_TZ= prefix so the rule always evaluates in a
// caller-chosen zone rather than the process's local zone.
type cronRecurrence struct {
	sched cronlib.Schedule
}

func (r cronRecurrence) NextDate(after time.Time) time.Time {
	return r.sched.Next(after)
}

func mustParse(spec string) cronlib.Schedule {
	sched, err := secondsParser.Parse(spec)
	if err != nil {
		panic(fmt.Sprintf("schedule: invalid generated cron spec %q: %v", spec, err))
	}

	return sched
}

func withTZ(loc *time.Location, fields string) string {
	return fmt.Sprintf("CRON_TZ=%s %s", loc.String(), fields)
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}

	return loc
}

// EveryMinute fires once a minute, Second seconds past the minute,
// evaluated in UTC.
type EveryMinute struct {
	Second int
	cronRecurrence
}

// NewEveryMinute creates a Recurrence firing at :second of every minute.
func NewEveryMinute(second int) EveryMinute {
	spec := withTZ(time.UTC, fmt.Sprintf("%d * * * * *", second))

	return EveryMinute{Second: second, cronRecurrence: cronRecurrence{sched: mustParse(spec)}}
}

// Hourly fires once an hour, Minute minutes past the hour, evaluated in
// UTC.
type Hourly struct {
	Minute int
	cronRecurrence
}

// NewHourly creates a Recurrence firing at :minute of every hour.
func NewHourly(minute int) Hourly {
	spec := withTZ(time.UTC, fmt.Sprintf("0 %d * * * *", minute))

	return Hourly{Minute: minute, cronRecurrence: cronRecurrence{sched: mustParse(spec)}}
}

// Daily fires once a day at Hour:Minute in Loc.
type Daily struct {
	Hour, Minute int
	Loc          *time.Location
	cronRecurrence
}

// NewDaily creates a Recurrence firing at hour:minute:00 every day in
// loc. A nil loc defaults to UTC.
func NewDaily(hour, minute int, loc *time.Location) Daily {
	loc = orUTC(loc)
	spec := withTZ(loc, fmt.Sprintf("0 %d %d * * *", minute, hour))

	return Daily{Hour: hour, Minute: minute, Loc: loc, cronRecurrence: cronRecurrence{sched: mustParse(spec)}}
}

// Weekly fires once a week, on Weekday at Hour:Minute in Loc.
type Weekly struct {
	Weekday      time.Weekday
	Hour, Minute int
	Loc          *time.Location
	cronRecurrence
}

// NewWeekly creates a Recurrence firing at hour:minute:00 every weekday
// in loc. A nil loc defaults to UTC.
func NewWeekly(weekday time.Weekday, hour, minute int, loc *time.Location) Weekly {
	loc = orUTC(loc)
	spec := withTZ(loc, fmt.Sprintf("0 %d %d * * %d", minute, hour, int(weekday)))

	return Weekly{
		Weekday:        weekday,
		Hour:           hour,
		Minute:         minute,
		Loc:            loc,
		cronRecurrence: cronRecurrence{sched: mustParse(spec)},
	}
}

// Monthly fires once a month, on DayOfMonth at Hour:Minute in Loc.
// Months that lack DayOfMonth (e.g. day 31 in April) are skipped rather
// than clamped to the last day of the month (O2).
type Monthly struct {
	DayOfMonth   int
	Hour, Minute int
	Loc          *time.Location
	cronRecurrence
}

// NewMonthly creates a Recurrence firing at dayOfMonth hour:minute:00
// every month that has that day, in loc. A nil loc defaults to UTC.
func NewMonthly(dayOfMonth, hour, minute int, loc *time.Location) Monthly {
	loc = orUTC(loc)
	spec := withTZ(loc, fmt.Sprintf("0 %d %d %d * *", minute, hour, dayOfMonth))

	return Monthly{
		DayOfMonth:     dayOfMonth,
		Hour:           hour,
		Minute:         minute,
		Loc:            loc,
		cronRecurrence: cronRecurrence{sched: mustParse(spec)},
	}
}
