// Package scheduler runs script coroutines and host callbacks cooperatively.
// Work is drained in bounded cycles: each Tick processes exactly the tasks
// that were queued when it started.
package scheduler

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrNilTask is returned when a nil callback or coroutine is enqueued.
var ErrNilTask = errors.New("scheduler: nil task")

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// TickStats summarizes one drain cycle.
type TickStats struct {
	Processed int // tasks popped this cycle
	Requeued  int // coroutines that yielded
	Finished  int // coroutines that returned
	Errored   int // coroutines that raised an error
	Callbacks int // callbacks invoked
}

// Scheduler is a FIFO queue of tasks drained once per Tick.
//
// Enqueue, EnqueueCoroutine, Empty and Len are safe for concurrent use.
// Tick calls are serialized. Calling Tick from inside a callback or a
// coroutine resume deadlocks.
type Scheduler struct {
	mu    sync.Mutex
	tasks []*Task

	drainMu sync.Mutex

	pinner Pinner
	logger *slog.Logger
}

// New creates a scheduler. A nil pinner means coroutines are not pinned.
func New(pinner Pinner, logger *slog.Logger) *Scheduler {
	if pinner == nil {
		pinner = nopPinner{}
	}
	return &Scheduler{
		tasks:  make([]*Task, 0, defaultQueueCap),
		pinner: pinner,
		logger: logger.With("component", "scheduler"),
	}
}

// Enqueue appends a callback task to the tail of the queue.
func (s *Scheduler) Enqueue(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	s.push(NewCallbackTask(fn))
	return nil
}

// EnqueueCoroutine pins co and appends a coroutine task to the tail of the queue.
func (s *Scheduler) EnqueueCoroutine(co Coroutine) error {
	if co == nil {
		return ErrNilTask
	}
	s.push(newCoroutineTask(NewCoroutineRef(co, s.pinner)))
	return nil
}

func (s *Scheduler) push(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// pop removes the head of the queue. The caller guarantees it is non-empty.
func (s *Scheduler) pop() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks[0]
	s.tasks[0] = nil
	s.tasks = s.tasks[1:]
	s.maybeCompactLocked()
	return t
}

func (s *Scheduler) maybeCompactLocked() {
	n := len(s.tasks)
	c := cap(s.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		s.tasks = make([]*Task, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newSlice := make([]*Task, n, max(c/2, defaultQueueCap, n))
	copy(newSlice, s.tasks)
	s.tasks = newSlice
}

// Tick drains one cycle. The queue length N is recorded on entry and
// exactly N tasks are popped; anything enqueued meanwhile, including
// coroutines that yield, waits for the next Tick.
//
// The queue lock is released while a coroutine resumes or a callback runs,
// so running tasks may enqueue more work.
func (s *Scheduler) Tick() TickStats {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	var stats TickStats
	for n := s.Len(); n > 0; n-- {
		t := s.pop()
		stats.Processed++

		switch t.kind {
		case KindCoroutine:
			switch t.ref.Coroutine().Resume() {
			case Yielded:
				s.push(t)
				stats.Requeued++
			case Errored:
				t.ref.Release()
				stats.Errored++
			default:
				t.ref.Release()
				stats.Finished++
			}
		case KindCallback:
			t.callback()
			stats.Callbacks++
		}
	}

	if stats.Processed > 0 {
		s.logger.Debug("tick",
			"processed", stats.Processed,
			"requeued", stats.Requeued,
			"finished", stats.Finished,
			"errored", stats.Errored,
			"callbacks", stats.Callbacks,
		)
	}
	return stats
}

// Clear drops every queued task without running it and releases the
// coroutine pins. It returns the number of tasks dropped. Like Tick, it
// must not be called from inside a task.
func (s *Scheduler) Clear() int {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	s.mu.Lock()
	dropped := s.tasks
	s.tasks = make([]*Task, 0, defaultQueueCap)
	s.mu.Unlock()

	for _, t := range dropped {
		if t.kind == KindCoroutine {
			t.ref.Release()
		}
	}
	return len(dropped)
}

// Empty reports whether the queue holds no tasks.
func (s *Scheduler) Empty() bool {
	return s.Len() == 0
}

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
