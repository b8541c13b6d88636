// Package schedule runs named, cancelable delayed tasks. Scheduling a
// task under a name already in use replaces the pending run, so a burst
// of triggers coalesces into one execution.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type task struct {
	cancel context.CancelFunc
}

// Scheduler owns a set of named pending tasks. Stop cancels everything
// and waits for in-flight runs, so a Scheduler can be tied to a
// component lifetime.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   map[string]*task
	wg      sync.WaitGroup
	stopped bool
}

// New creates a Scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		tasks:  make(map[string]*task),
	}
}

// After runs fn once after the delay, under the given name. A pending
// task with the same name is canceled first. After a Stop, scheduling is
// a no-op.
func (s *Scheduler) After(name string, delay time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if prev, ok := s.tasks[name]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	handle := &task{cancel: cancel}
	s.tasks[name] = handle
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.forget(name, handle)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.logger.Debug("running scheduled task", "task", name, "delay", delay)
		fn(ctx)
	}()
}

// Cancel drops the pending task with the given name, if any.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	handle, ok := s.tasks[name]
	if ok {
		delete(s.tasks, name)
	}
	s.mu.Unlock()
	if ok {
		handle.cancel()
	}
}

// Stop cancels every pending task and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	handles := make([]*task, 0, len(s.tasks))
	for _, h := range s.tasks {
		handles = append(handles, h)
	}
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	s.wg.Wait()
}

// forget clears the task entry after its goroutine finishes, unless the
// name was already reused by a newer schedule.
func (s *Scheduler) forget(name string, handle *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[name] == handle {
		delete(s.tasks, name)
	}
}
