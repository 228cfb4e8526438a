// Package sequence provides the FIFO task sequence both histcore execution
// contexts run on: the engine's single-writer sequence and the caller's
// owner sequence.
package sequence

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one unit of work posted to a Sequence.
type Task func()

// Sequence is a thread-safe FIFO of tasks executed one at a time.
//
// The queue is unbounded so that posting never blocks the caller. Post may
// be called from any goroutine; tasks run only on the goroutine that calls
// Run or RunPending.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type Sequence struct {
	name   string
	mu     sync.Mutex
	tasks  []Task
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

// New creates an empty sequence. The name is used in log lines only.
func New(name string) *Sequence {
	return &Sequence{
		name:   name,
		tasks:  make([]Task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Name returns the sequence name.
func (s *Sequence) Name() string { return s.name }

// Post adds a task to the back of the sequence.
// Returns false if the sequence is closed.
func (s *Sequence) Post(t Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.tasks = append(s.tasks, t)

	// Buffer of 1 coalesces multiple signals.
	select {
	case s.signal <- struct{}{}:
	default:
	}

	return true
}

// TryNext removes and returns the front task without blocking.
func (s *Sequence) TryNext() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) == 0 {
		return nil, false
	}

	t := s.tasks[0]

	// Nil out the slot so the closure can be collected.
	s.tasks[0] = nil

	if len(s.tasks) == 1 {
		s.tasks = s.tasks[:0]
	} else {
		s.tasks = s.tasks[1:]
	}

	return t, true
}

// Wait returns a channel that signals when tasks may be available. The
// channel is closed by Close.
func (s *Sequence) Wait() <-chan struct{} {
	return s.signal
}

// Len returns the number of queued tasks.
func (s *Sequence) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Closed reports whether Close has been called.
func (s *Sequence) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close refuses further posts. Tasks already queued still run.
func (s *Sequence) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.signal) // Wakes all waiters
}

// Run executes tasks in FIFO order until the sequence is closed and drained,
// or ctx is cancelled. Queued tasks are abandoned on cancellation.
func (s *Sequence) Run(ctx context.Context) error {
	slog.Debug("sequence starting", "sequence", s.name)

	for {
		if t, ok := s.TryNext(); ok {
			t()
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("sequence stopping: context cancelled", "sequence", s.name, "abandoned", s.Len())
			return ctx.Err()

		case <-s.signal:
			// A closed signal channel fires immediately; stop once drained.
			if s.Closed() && s.Len() == 0 {
				slog.Debug("sequence stopping: closed", "sequence", s.name)
				return nil
			}
		}
	}
}

// RunPending executes queued tasks, including ones posted while draining,
// until the sequence is empty. Returns the number of tasks run.
func (s *Sequence) RunPending() int {
	n := 0
	for {
		t, ok := s.TryNext()
		if !ok {
			return n
		}
		t()
		n++
	}
}
