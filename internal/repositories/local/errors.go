// Package local implements device-scoped repositories over the embedded
// SQLite store.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Error carries repository semantics for SQLite failures.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }
func (e *Error) Unwrap() error { return e.err }

// IsNotFound reports a missing row.
func (e *Error) IsNotFound() bool { return e.notFound }

// IsConflict reports a constraint violation.
func (e *Error) IsConflict() bool { return e.conflict }

// IsUnavailable reports a busy or locked database.
func (e *Error) IsUnavailable() bool { return e.unavailable }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	e := &Error{op: op, err: err}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, sql.ErrNoRows):
		e.notFound = true
	case strings.Contains(msg, "constraint failed"):
		e.conflict = true
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "sqlite_busy"):
		e.unavailable = true
	}
	return e
}

func notFound(op, what string) error {
	return &Error{op: op, err: fmt.Errorf("%s not found: %w", what, sql.ErrNoRows), notFound: true}
}
