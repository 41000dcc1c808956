// Package memory implements driver.Driver entirely in process memory. It
// has no durability across restarts and exists for tests and local
// development, the same role store/memory plays for the wider dispatch
// stack it descends from.
package memory

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/chronopool/chronopool/driver"
	"github.com/chronopool/chronopool/id"
)

// defaultQueue is the logical queue name used when a caller does not set
// driver.PushOptions.Queue.
const defaultQueue = "default"

// pendingJob is one entry in a queue's readiness heap.
type pendingJob struct {
	id      id.JobID
	buffer  []byte
	readyAt time.Time
	index   int
}

type jobHeap []*pendingJob

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].readyAt.Before(h[j].readyAt) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *jobHeap) Push(x interface{}) {
	pj := x.(*pendingJob) //nolint:forcetypeassert // container/heap contract
	pj.index = len(*h)
	*h = append(*h, pj)
}
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	pj := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return pj
}

// Driver is an in-memory driver.Driver. Safe for concurrent use. Jobs are
// kept in one readiness heap per logical queue name so a Driver scoped to
// a subset of queues (WithQueues) never has to drain past a due job in a
// queue it doesn't serve.
type Driver struct {
	mu       sync.Mutex
	heaps    map[string]*jobHeap
	queues   map[string]struct{} // nil means "serve every queue"
	inflight map[string]struct{}
	metadata map[string][]byte
	stopped  bool

	wake chan struct{}
	out  chan driver.QueuedJob
	done chan struct{}
}

var _ driver.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithQueues restricts this Driver to draining only the named logical
// queues. Pushes to other queues are still accepted and stored; they
// simply are not yielded by this Driver's Jobs channel. The zero value
// (no WithQueues call) serves every queue.
func WithQueues(names ...string) Option {
	return func(d *Driver) {
		d.queues = make(map[string]struct{}, len(names))
		for _, name := range names {
			d.queues[name] = struct{}{}
		}
	}
}

// New creates an empty in-memory driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		heaps:    make(map[string]*jobHeap),
		inflight: make(map[string]struct{}),
		metadata: make(map[string][]byte),
		wake:     make(chan struct{}, 1),
		out:      make(chan driver.QueuedJob),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// OnInit starts the dispatch loop bound to ctx. It must be called exactly
// once before Jobs.
func (d *Driver) OnInit(ctx context.Context) error {
	go d.loop(ctx)
	return nil
}

// Push implements driver.Driver. It keeps working after Stop: a handler
// still draining when shutdown begins must be able to retry or requeue
// without its job silently vanishing.
func (d *Driver) Push(_ context.Context, buffer []byte, opts driver.PushOptions) (id.JobID, error) {
	d.mu.Lock()

	readyAt := opts.DelayUntil
	if readyAt.IsZero() {
		readyAt = time.Now()
	}

	queue := opts.Queue
	if queue == "" {
		queue = defaultQueue
	}

	h, ok := d.heaps[queue]
	if !ok {
		h = &jobHeap{}
		d.heaps[queue] = h
	}

	jobID := id.NewJobID()
	heap.Push(h, &pendingJob{id: jobID, buffer: buffer, readyAt: readyAt})
	d.mu.Unlock()

	d.signal()

	return jobID, nil
}

// Jobs implements driver.Driver. ctx is unused: the loop runs bound to the
// context passed to OnInit.
func (d *Driver) Jobs(_ context.Context) <-chan driver.QueuedJob {
	return d.out
}

// Finished implements driver.Driver.
func (d *Driver) Finished(_ context.Context, jobID id.JobID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, jobID.String())
	return nil
}

// Failed implements driver.Driver.
func (d *Driver) Failed(_ context.Context, jobID id.JobID, _ error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, jobID.String())
	return nil
}

// GetMetadata implements driver.Driver.
func (d *Driver) GetMetadata(_ context.Context, key string) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	value, ok := d.metadata[key]
	if !ok {
		return nil, false, nil
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, true, nil
}

// SetMetadata implements driver.Driver.
func (d *Driver) SetMetadata(_ context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	d.metadata[key] = cp
	return nil
}

// Stop implements driver.Driver.
func (d *Driver) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.signal()
}

// ShutdownGracefully implements driver.Driver.
func (d *Driver) ShutdownGracefully(ctx context.Context) error {
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// served reports whether queue is one this Driver drains.
func (d *Driver) served(queue string) bool {
	if d.queues == nil {
		return true
	}
	_, ok := d.queues[queue]
	return ok
}

// earliestServed returns the heap holding the earliest-ready job across
// every served queue, or nil if none has a pending job.
func (d *Driver) earliestServed() *jobHeap {
	var earliest *jobHeap
	for queue, h := range d.heaps {
		if h.Len() == 0 || !d.served(queue) {
			continue
		}
		if earliest == nil || (*h)[0].readyAt.Before((*earliest)[0].readyAt) {
			earliest = h
		}
	}
	return earliest
}

// loop drains ready jobs from every served queue into out, always
// yielding the earliest-ready job across those queues first. Once Stop
// has been called it flushes whatever is already due and closes out;
// jobs still waiting for a future readyAt are dropped, matching this
// driver's no-durability contract.
func (d *Driver) loop(ctx context.Context) {
	defer close(d.done)
	defer close(d.out)

	for {
		d.mu.Lock()
		h := d.earliestServed()
		if h == nil {
			stopped := d.stopped
			d.mu.Unlock()
			if stopped {
				return
			}

			select {
			case <-d.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		next := (*h)[0]
		now := time.Now()
		if next.readyAt.After(now) {
			stopped := d.stopped
			d.mu.Unlock()
			if stopped {
				return
			}

			timer := time.NewTimer(next.readyAt.Sub(now))
			select {
			case <-timer.C:
			case <-d.wake:
				timer.Stop()
			case <-ctx.Done():
				timer.Stop()
				return
			}
			continue
		}

		job := heap.Pop(h).(*pendingJob) //nolint:forcetypeassert // heap contract
		d.inflight[job.id.String()] = struct{}{}
		d.mu.Unlock()

		select {
		case d.out <- driver.QueuedJob{ID: job.id, Buffer: job.buffer}:
		case <-ctx.Done():
			return
		}
	}
}
