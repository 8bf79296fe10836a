package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/clash/internal/domain/errs"
)

// Sentinel kinds for transport-level API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBodyTooLarge = errors.New("request body too large")
)

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags err with kind, keeping both reachable through errors.Is.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// statusOf maps an error to its HTTP status and response code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrConcurrency):
		return http.StatusConflict, "concurrency_conflict"
	case errors.Is(err, errs.ErrDependency):
		return http.StatusBadGateway, "dependency_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage is the message a client sees for err.
func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		if errors.Is(err, errs.ErrDependency) {
			return errs.PublicMessage(err)
		}
		return http.StatusText(status)
	}
	if errs.IsKnown(err) {
		return errs.PublicMessage(err)
	}
	return err.Error()
}

func errMissing(name string) error {
	return fmt.Errorf("missing %s", name)
}
