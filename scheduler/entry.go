package scheduler

import (
	"time"

	"github.com/chronopool/chronopool/id"
	"github.com/chronopool/chronopool/schedule"
)

// Accuracy governs how a ScheduleEntry replays firings it missed while
// the scheduler was not running.
type Accuracy int

const (
	// AccuracyLatest collapses any number of missed firings into a
	// single push, fast-forwarded to the next instant after now.
	AccuracyLatest Accuracy = iota

	// AccuracyAll replays every missed firing in order, one push per
	// instant.
	AccuracyAll
)

// String implements fmt.Stringer.
func (a Accuracy) String() string {
	if a == AccuracyAll {
		return "all"
	}

	return "latest"
}

// ScheduleEntry is one recurring job: a job-request template, a
// recurrence rule, a replay policy, and the mutable cursor tracking when
// it next fires.
type ScheduleEntry struct {
	ID id.ScheduleEntryID

	// Name identifies this entry in logs and the CronFired hook.
	// Defaults to JobName if not set via WithEntryName.
	Name string

	// JobName is the registered job type pushed on each firing.
	JobName string

	// Parameters is the JSON-encoded payload pushed with every firing.
	Parameters []byte

	// Queue overrides the default queue for pushed jobs, if set.
	Queue string

	// Schedule computes each successive fire instant.
	Schedule schedule.Recurrence

	// Accuracy governs missed-firing replay.
	Accuracy Accuracy

	// NextScheduledDate is the next instant this entry is due to fire.
	// The scheduler mutates it after every push; single-writer, never
	// touched concurrently from outside the scheduler's own goroutine.
	NextScheduledDate time.Time
}

// JobSchedule is an ordered, index-addressable list of ScheduleEntry.
type JobSchedule struct {
	entries []*ScheduleEntry
}

// Add appends an entry and returns its index.
func (js *JobSchedule) Add(e *ScheduleEntry) int {
	js.entries = append(js.entries, e)

	return len(js.entries) - 1
}

// Len returns the number of entries.
func (js *JobSchedule) Len() int { return len(js.entries) }

// At returns the entry at index i.
func (js *JobSchedule) At(i int) *ScheduleEntry { return js.entries[i] }

// All returns every entry, in index order. The returned slice must not
// be mutated by callers other than the owning Scheduler.
func (js *JobSchedule) All() []*ScheduleEntry { return js.entries }

// NextJob returns the index and entry with the smallest
// NextScheduledDate, breaking ties by lower index. It returns (-1, nil)
// for an empty schedule.
func (js *JobSchedule) NextJob() (int, *ScheduleEntry) {
	if len(js.entries) == 0 {
		return -1, nil
	}

	bestIdx := 0
	for i := 1; i < len(js.entries); i++ {
		if js.entries[i].NextScheduledDate.Before(js.entries[bestIdx].NextScheduledDate) {
			bestIdx = i
		}
	}

	return bestIdx, js.entries[bestIdx]
}
