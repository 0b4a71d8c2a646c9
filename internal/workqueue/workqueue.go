// Package workqueue implements the cooperative work-queue and phase
// barrier the Coordinator drives each of the five phases through (spec
// §5): an unbounded task queue, an errgroup-backed worker pool where the
// submitter itself participates as a consumer (so a pool of size 1 never
// self-deadlocks waiting on a task it alone must drain), and a
// first-fault-wins shared error slot so one worker's failure stops the
// phase without losing the original error to a later, secondary one.
//
// Grounded in the teacher's own fan-out/fan-in shape in
// indexer.go's runSorterNode launch loop (wg.Add/go func/wg.Done over a
// channel per consumer), generalized to errgroup.Group the way
// kluzzebass-gastrolog's internal/index/build.go parallelizes a slice of
// indexers with golang.org/x/sync/errgroup.
package workqueue

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of phase work; Run must be safe to call concurrently
// with other Tasks' Run from different workers.
type Task func(ctx context.Context) error

// Queue is a simple FIFO of pending Tasks, closed once the producer has
// submitted everything for the current phase. It has no capacity limit:
// Submit never blocks and never rejects a task for lack of room.
type Queue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
}

func NewQueue() *Queue {
	return &Queue{}
}

// Submit enqueues a task. Submit after Close panics — it indicates a
// phase boundary was crossed incorrectly.
func (q *Queue) Submit(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		panic("workqueue: submit after close")
	}
	q.tasks = append(q.tasks, t)
}

// Close marks the queue as fully populated; subsequent Pop calls drain
// the remaining tasks and then report done.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Pop removes and returns the next pending task, or ok=false if the queue
// is currently empty (whether or not it is closed — callers that want to
// drain the queue to the end of the phase should use Run instead of
// polling Pop directly).
func (q *Queue) Pop() (t Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, false
	}
	t, q.tasks = q.tasks[0], q.tasks[1:]
	return t, true
}

// FirstFault is a first-fault-wins error slot: the first non-nil error
// recorded wins and every later Record call is a no-op, so a cascade of
// secondary failures triggered by the first one never overwrites the
// original cause (spec §7: "the first error observed wins").
type FirstFault struct {
	mu  sync.Mutex
	err error
}

func (f *FirstFault) Record(err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

func (f *FirstFault) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Run drains queue with concurrency workers, the calling goroutine acting
// as one of them (so Run(ctx, q, 1) never blocks forever waiting for a
// second goroutine that does not exist). It stops dispatching new tasks
// as soon as any task returns a non-nil error or ctx is cancelled, and
// returns the first such error.
func Run(ctx context.Context, q *Queue, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	var fault FirstFault

	drain := func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			t, ok := q.Pop()
			if !ok {
				return nil
			}
			if err := t(gctx); err != nil {
				fault.Record(err)
				return err
			}
		}
	}

	for i := 1; i < concurrency; i++ {
		g.Go(drain)
	}
	// The submitter's own goroutine participates as consumer #1.
	if err := drain(); err != nil {
		cancel()
		fault.Record(err)
	}

	werr := g.Wait()
	if err := fault.Err(); err != nil {
		return err
	}
	return werr
}

// Barrier is a reusable countdown latch: n goroutines call Arrive, and
// every one of them unblocks only once all n have arrived, matching spec
// §5's "phases execute strictly sequentially" requirement at a
// finer-than-whole-phase grain when a phase itself has internal stages.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	arrived int
	gen     int
}

func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *Barrier) Arrive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.gen
	b.arrived++
	if b.arrived == b.n {
		b.arrived = 0
		b.gen++
		b.cond.Broadcast()
		return
	}
	for b.gen == gen {
		b.cond.Wait()
	}
}
