// Package errs defines the error kinds shared by the conflict engine.
//
// Every error leaving a domain package is an *Error carrying one of the
// sentinel kinds below, so transports can map it with errors.Is without
// knowing which package produced it.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel error kinds.
var (
	// ErrValidation marks caller mistakes: bad ranges, rule invariant
	// violations, decisions for non-member events. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks unknown events or groups.
	ErrNotFound = errors.New("not found")
	// ErrConcurrency marks an optimistic version mismatch that survived the
	// bounded retry loop.
	ErrConcurrency = errors.New("concurrent modification")
	// ErrDependency marks an unavailable collaborator (catalog, ratings, store).
	ErrDependency = errors.New("dependency unavailable")
)

// Error is an operation-scoped error of a given kind.
type Error struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns the human readable part without the op prefix.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Error()
}

// Validation builds an ErrValidation error.
func Validation(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound error.
func NotFound(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Concurrency wraps err as an ErrConcurrency error.
func Concurrency(op string, err error) error {
	return &Error{Op: op, Kind: ErrConcurrency, Err: err}
}

// Dependency wraps err as an ErrDependency error. Domain kinds already
// present in err are preserved so a not-found from a store stays a not-found.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return &Error{Op: op, Kind: ErrDependency, Err: err}
}

// IsKnown reports whether err already carries one of the domain kinds.
func IsKnown(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConcurrency) ||
		errors.Is(err, ErrDependency)
}

// PublicMessage returns the message that is safe to surface to callers.
// Dependency failures are reduced to a generic text.
func PublicMessage(err error) string {
	if errors.Is(err, ErrDependency) {
		return "a required dependency is unavailable"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
