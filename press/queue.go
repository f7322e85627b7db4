package press

import (
	"fmt"
	"sync"
	"time"
)

// DefaultThreshold is the quiet period after the last release before a burst of clicks is flushed.
const DefaultThreshold = 300 * time.Millisecond

// Queue counts rapidly repeated clicks of a single button and reports the total once
// no further click has arrived within the threshold. Each click restarts the window.
type Queue struct {
	threshold time.Duration
	scheduler Scheduler
	lock      sync.Locker

	clicks     int
	pending    Cancel
	generation uint64
	callback   func(int)
}

func NewQueue(threshold time.Duration, s Scheduler) *Queue {
	return newQueue(threshold, s, &sync.Mutex{})
}

func newQueue(threshold time.Duration, s Scheduler, l sync.Locker) *Queue {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Queue{
		threshold: threshold,
		scheduler: s,
		lock:      l,
	}
}

// Press records a click and (re)arms the flush, cb receives the burst count when it fires.
func (q *Queue) Press(cb func(int)) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.press(cb)
}

// press arms the replacement flush before touching any state, a failed Schedule
// leaves the previous window and its count as they were.
func (q *Queue) press(cb func(int)) error {
	generation := q.generation + 1

	pending, err := q.scheduler.Schedule(q.threshold, func() {
		q.flush(generation)
	})
	if err != nil {
		return fmt.Errorf("scheduling click flush: %w", err)
	}

	q.cancel()

	q.clicks++
	q.callback = cb
	q.pending = pending
	return nil
}

// cancel stops any outstanding flush. A flush that has already been dequeued by the
// scheduler will observe the new generation and do nothing.
func (q *Queue) cancel() {
	if q.pending != nil {
		q.pending()
		q.pending = nil
	}

	q.generation++
}

func (q *Queue) flush(generation uint64) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if generation != q.generation || q.pending == nil {
		return
	}

	if q.callback != nil {
		q.callback(q.clicks)
	}

	q.clicks = 0
	q.pending = nil
}

// Clicks returns the number of clicks accumulated in the currently open window.
func (q *Queue) Clicks() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.clicks
}

// Pending reports whether a flush is scheduled.
func (q *Queue) Pending() bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.pending != nil
}

// Stop abandons the open window without invoking the callback.
func (q *Queue) Stop() {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.stop()
}

func (q *Queue) stop() {
	q.cancel()
	q.clicks = 0
	q.callback = nil
}
