package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by single-row reads when the row does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by Update after Close.
var ErrClosed = errors.New("store closed")

// Error is a failed store operation. Code carries the SQLite extended result
// code when the driver reported one.
type Error struct {
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("store %s (sqlite code %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Corrupt reports whether the failure means the database file itself is
// unusable.
func (e *Error) Corrupt() bool {
	var se sqlite3.Error
	if !errors.As(e.Err, &se) {
		return false
	}
	switch se.Code {
	case sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrFull:
		return true
	}
	return false
}

// wrap annotates err with the failing operation. ErrNotFound passes through
// unchanged so callers can test it with errors.Is.
func wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	code := 0
	var se sqlite3.Error
	if errors.As(err, &se) {
		code = int(se.ExtendedCode)
	}
	return &Error{Op: op, Code: code, Err: err}
}

// IsCorruption reports whether err is a store error that marks the database
// as unusable.
func IsCorruption(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Corrupt()
}

// IsFatal reports whether err leaves the store unusable for every later
// operation: a corrupt or unwritable database, or a closed store. Other
// failures, such as a malformed statement or a canceled context, affect
// only the operation that hit them.
func IsFatal(err error) bool {
	return IsCorruption(err) || errors.Is(err, ErrClosed)
}

// StatusCode returns the SQLite code carried by err, or -1 when err is not a
// store error.
func StatusCode(err error) int {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return -1
}
