package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/questhold/questhold/pkg/interfaces"
)

// Task is a unit of scheduled work.
type Task func(ctx context.Context)

// TaskScheduler runs tasks at the fire times of their triggers. Each
// scheduled task gets its own goroutine and never overlaps itself.
type TaskScheduler struct {
	logger interfaces.Logger
	now    func() time.Time

	// runCtx is handed to tasks; only Stop cancels it
	runCtx    context.Context
	runCancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	handles map[*Handle]struct{}
	wg      sync.WaitGroup
}

// NewTaskScheduler creates a new task scheduler
func NewTaskScheduler(logger interfaces.Logger) *TaskScheduler {
	runCtx, runCancel := context.WithCancel(context.Background())
	return &TaskScheduler{
		logger:    logger,
		now:       time.Now,
		runCtx:    runCtx,
		runCancel: runCancel,
		handles:   make(map[*Handle]struct{}),
	}
}

// Handle controls one scheduled task.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	next    time.Time
	running bool
}

// Cancel stops future runs. A run already in progress completes.
func (h *Handle) Cancel() {
	h.cancel()
}

// Next returns the pending fire time, or the zero time once cancelled or
// exhausted.
func (h *Handle) Next() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next
}

// Running reports whether the task is executing right now.
func (h *Handle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Done is closed when the handle's goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) setNext(next time.Time) {
	h.mu.Lock()
	h.next = next
	h.mu.Unlock()
}

func (h *Handle) setRunning(running bool) {
	h.mu.Lock()
	h.running = running
	h.mu.Unlock()
}

// Schedule arms task on trigger. The first fire time is computed before
// Schedule returns.
func (s *TaskScheduler) Schedule(trigger Trigger, task Task) (*Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		close(h.done)
		return nil, ErrSchedulerStopped
	}
	h.setNext(trigger.Next(s.now()))
	s.handles[h] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx, h, trigger, task)
	return h, nil
}

func (s *TaskScheduler) loop(ctx context.Context, h *Handle, trigger Trigger, task Task) {
	defer func() {
		h.setNext(time.Time{})
		s.mu.Lock()
		delete(s.handles, h)
		s.mu.Unlock()
		close(h.done)
		s.wg.Done()
	}()

	for {
		next := h.Next()
		if next.IsZero() {
			return
		}

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		h.setRunning(true)
		s.run(task)
		h.setRunning(false)

		if ctx.Err() != nil {
			return
		}
		h.setNext(trigger.Next(s.now()))
	}
}

func (s *TaskScheduler) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled task panicked", interfaces.Error(fmt.Errorf("%v", r)))
		}
	}()
	task(s.runCtx)
}

// Stop cancels every handle, cancels the context of in-flight runs and
// waits for them to return.
func (s *TaskScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for h := range s.handles {
		h.Cancel()
	}
	s.mu.Unlock()

	s.runCancel()

	s.wg.Wait()
}
