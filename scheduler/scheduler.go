// Package scheduler runs delayed one-shot callbacks on a single worker
// goroutine. Rescheduling through a previous handle cancels it first, which
// is what turns a burst of filesystem events into one build.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type eventState int

const (
	statePending eventState = iota
	stateFired
	stateCancelled
)

// Event is a handle to one scheduled callback.
type Event struct {
	at    time.Time
	seq   uint64
	fn    func()
	index int
	state eventState
}

// Scheduler owns a time-ordered queue of callbacks and a worker goroutine
// that fires them. All methods are safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	queue   eventQueue
	seq     uint64
	stopped bool

	wake   chan struct{}
	done   chan struct{}
	logger *log.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for scheduling and callback failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scheduler and starts its worker.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: log.Default().WithPrefix("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.run()

	return s
}

// Schedule arranges for fn to run after delay. If prev is still pending it
// is cancelled first, so an owner that always passes its last handle has at
// most one pending callback. After Stop, Schedule does nothing and returns
// nil.
func (s *Scheduler) Schedule(prev *Event, delay time.Duration, fn func()) *Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.Debug("discarding schedule request after stop")
		return nil
	}

	if prev != nil {
		s.cancelLocked(prev)
	}
	if delay < 0 {
		delay = 0
	}

	s.seq++
	ev := &Event{
		at:  time.Now().Add(delay),
		seq: s.seq,
		fn:  fn,
	}
	heap.Push(&s.queue, ev)
	s.logger.Debug("scheduled", "delay", delay, "pending", len(s.queue))

	s.notify()
	return ev
}

// Cancel removes ev from the queue. It reports whether ev was still pending.
func (s *Scheduler) Cancel(ev *Event) bool {
	if ev == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cancelLocked(ev) {
		return false
	}
	s.notify()
	return true
}

// Pending reports whether ev is queued and has neither fired nor been
// cancelled.
func (s *Scheduler) Pending(ev *Event) bool {
	if ev == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return ev.state == statePending
}

// Len returns the number of pending callbacks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stop cancels every pending callback and makes the worker exit. A callback
// that is already running is allowed to finish. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.logger.Info("stopping event scheduler", "pending", len(s.queue))
	s.stopped = true
	for _, ev := range s.queue {
		ev.state = stateCancelled
		ev.index = -1
		ev.fn = nil
	}
	s.queue = nil

	s.notify()
}

// Join blocks until the worker has exited or timeout elapses. A timeout of
// zero or less waits indefinitely. It reports whether the worker exited.
func (s *Scheduler) Join(timeout time.Duration) bool {
	if timeout <= 0 {
		<-s.done
		return true
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-s.done:
		return true
	case <-t.C:
		return false
	}
}

func (s *Scheduler) cancelLocked(ev *Event) bool {
	if ev.state != statePending {
		return false
	}
	heap.Remove(&s.queue, ev.index)
	ev.state = stateCancelled
	ev.fn = nil
	return true
}

// notify wakes the worker without blocking; one queued wake-up is enough
// because the worker re-examines the whole queue each time.
func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	defer close(s.done)

	s.logger.Debug("starting event scheduler")

	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			s.logger.Debug("event scheduler stopped")
			return
		}

		now := time.Now()
		if len(s.queue) > 0 && !s.queue[0].at.After(now) {
			ev := heap.Pop(&s.queue).(*Event)
			ev.state = stateFired
			fn := ev.fn
			ev.fn = nil
			s.mu.Unlock()

			s.fire(fn)
			continue
		}

		var timer *time.Timer
		var due <-chan time.Time
		if len(s.queue) > 0 {
			timer = time.NewTimer(s.queue[0].at.Sub(now))
			due = timer.C
		}
		s.mu.Unlock()

		// A nil due channel blocks forever, so an empty queue sleeps until woken.
		select {
		case <-s.wake:
		case <-due:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (s *Scheduler) fire(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled callback panicked", "panic", r)
		}
	}()

	if fn != nil {
		fn()
	}
}

// eventQueue is a min-heap ordered by fire time, then insertion order.
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *eventQueue) Push(x any) {
	ev := x.(*Event)
	ev.index = len(*q)
	*q = append(*q, ev)
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*q = old[:n-1]
	return ev
}
