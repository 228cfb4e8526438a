package service

import "sync/atomic"

// Ticket tracks one query. Canceling it skips the query if the engine has
// not started it and always suppresses its callback.
type Ticket struct {
	canceled atomic.Bool
}

// Cancel cancels the query. It is safe to call more than once and from any
// goroutine.
func (t *Ticket) Cancel() { t.canceled.Store(true) }

// Canceled reports whether Cancel was called or the query was never queued.
func (t *Ticket) Canceled() bool { return t.canceled.Load() }
