package press

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Cancel stops a scheduled task, it returns true if the task was stopped before it ran.
type Cancel func() bool

// Scheduler schedules a delayed function call which may later be cancelled.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (Cancel, error)
}

// TimerScheduler schedules tasks on the Go runtime timer.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) (Cancel, error) {
	t := time.AfterFunc(d, fn)
	return t.Stop, nil
}

var _ Scheduler = TimerScheduler{}

var ErrSchedulerExhausted = errors.New("scheduler exhausted")

// ManualScheduler only runs tasks when time is advanced by its owner. It is used
// to replay button sequences deterministically.
type ManualScheduler struct {
	m *sync.Mutex

	now   time.Duration
	seq   uint64
	tasks []*manualTask
	limit int
}

type manualTask struct {
	at  time.Duration
	seq uint64
	fn  func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{m: &sync.Mutex{}}
}

// Limit caps the number of outstanding tasks, further calls to Schedule fail with
// ErrSchedulerExhausted. Zero removes the limit.
func (s *ManualScheduler) Limit(n int) {
	s.m.Lock()
	defer s.m.Unlock()

	s.limit = n
}

func (s *ManualScheduler) Schedule(d time.Duration, fn func()) (Cancel, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.limit > 0 && len(s.tasks) >= s.limit {
		return nil, ErrSchedulerExhausted
	}

	s.seq++
	task := &manualTask{at: s.now + d, seq: s.seq, fn: fn}
	s.tasks = append(s.tasks, task)

	return func() bool {
		return s.remove(task)
	}, nil
}

func (s *ManualScheduler) remove(task *manualTask) bool {
	s.m.Lock()
	defer s.m.Unlock()

	for i, t := range s.tasks {
		if t == task {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return true
		}
	}

	return false
}

// Advance moves the clock forward, running every task that becomes due in order.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.m.Lock()
	target := s.now + d
	s.m.Unlock()

	for {
		s.m.Lock()
		task := s.nextDue(target)
		if task == nil {
			s.now = target
			s.m.Unlock()
			return
		}
		s.now = task.at
		s.m.Unlock()

		task.fn()
	}
}

// FireAll runs every outstanding task, including tasks scheduled while firing.
func (s *ManualScheduler) FireAll() {
	for {
		s.m.Lock()
		if len(s.tasks) == 0 {
			s.m.Unlock()
			return
		}
		task := s.nextDue(s.latest())
		s.now = task.at
		s.m.Unlock()

		task.fn()
	}
}

// Pending returns the number of outstanding tasks.
func (s *ManualScheduler) Pending() int {
	s.m.Lock()
	defer s.m.Unlock()

	return len(s.tasks)
}

// Now returns the time elapsed on the scheduler's clock.
func (s *ManualScheduler) Now() time.Duration {
	s.m.Lock()
	defer s.m.Unlock()

	return s.now
}

func (s *ManualScheduler) latest() time.Duration {
	latest := s.now

	for _, t := range s.tasks {
		if t.at > latest {
			latest = t.at
		}
	}

	return latest
}

func (s *ManualScheduler) nextDue(target time.Duration) *manualTask {
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].at == s.tasks[j].at {
			return s.tasks[i].seq < s.tasks[j].seq
		}
		return s.tasks[i].at < s.tasks[j].at
	})

	if len(s.tasks) == 0 || s.tasks[0].at > target {
		return nil
	}

	task := s.tasks[0]
	s.tasks = s.tasks[1:]

	return task
}

var _ Scheduler = (*ManualScheduler)(nil)
