package mapview

import (
	"context"
	"sync"
)

// DefaultTaskStackSize is the number of pending tasks a TaskStack keeps.
const DefaultTaskStackSize = 16

// Task is a unit of background work. ctx is cancelled when the owning
// stack is closed.
type Task func(ctx context.Context)

// TaskStack runs tasks one at a time on a single worker goroutine, newest
// first. When more than its capacity are pending the oldest pending task is
// dropped, so a fast pan only loads what is currently on screen.
type TaskStack struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	buf     []Task
	head    int // index of the oldest pending task
	n       int
	running bool
	dropped int
}

// NewTaskStack returns a stack holding at most capacity pending tasks
// (DefaultTaskStackSize when capacity <= 0). Tasks stop running once ctx is
// cancelled or Close is called.
func NewTaskStack(ctx context.Context, capacity int) *TaskStack {
	if capacity <= 0 {
		capacity = DefaultTaskStackSize
	}
	ctx, cancel := context.WithCancel(ctx)
	return &TaskStack{ctx: ctx, cancel: cancel, buf: make([]Task, capacity)}
}

// Push schedules t. It never blocks.
func (s *TaskStack) Push(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	if s.n == len(s.buf) {
		s.buf[s.head] = nil
		s.head = (s.head + 1) % len(s.buf)
		s.n--
		s.dropped++
		Logger().Debug("task stack full, dropped oldest task", "capacity", len(s.buf))
	}
	s.buf[(s.head+s.n)%len(s.buf)] = t
	s.n++
	if !s.running {
		s.running = true
		go s.work()
	}
}

// popLocked removes the newest pending task.
func (s *TaskStack) popLocked() Task {
	if s.n == 0 {
		return nil
	}
	i := (s.head + s.n - 1) % len(s.buf)
	t := s.buf[i]
	s.buf[i] = nil
	s.n--
	return t
}

func (s *TaskStack) work() {
	for {
		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.clearLocked()
		}
		t := s.popLocked()
		if t == nil {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		t(s.ctx)
	}
}

func (s *TaskStack) clearLocked() {
	for i := range s.buf {
		s.buf[i] = nil
	}
	s.head, s.n = 0, 0
}

// Len returns the number of pending tasks.
func (s *TaskStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Dropped returns how many tasks were discarded because the stack was full.
func (s *TaskStack) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close cancels the context passed to running tasks and discards pending
// ones.
func (s *TaskStack) Close() {
	s.cancel()
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
}
