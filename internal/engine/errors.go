package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/histcore/internal/store"
)

var (
	// ErrFailed is returned by every operation once the store reported a
	// fatal failure. The engine does not recover from it.
	ErrFailed = errors.New("history engine failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("history engine closed")
)

// OpError is a store failure observed while running an engine operation.
//
// OpError wraps the underlying *store.Error, so store.IsCorruption and
// store.StatusCode still apply to it.
type OpError struct {
	// Op names the engine operation, e.g. "add page".
	Op string

	// Err is the store error.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error { return e.Err }

// IsFailed returns true if err means the engine stopped accepting work.
// Uses errors.As to handle wrapped errors.
func IsFailed(err error) bool {
	if errors.Is(err, ErrFailed) {
		return true
	}
	var oe *OpError
	return errors.As(err, &oe) && store.IsFatal(oe.Err)
}
