package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying remote engine failures. Callers branch with
// errors.Is; APIError carries the transport detail for logging.
var (
	// ErrNotFound: the session, chat or group does not exist upstream.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the resource already exists. Session creation absorbs this.
	ErrConflict = errors.New("already exists")
	// ErrNotReady: the operation was attempted before the session reached
	// the required state (e.g. QR fetch before SCAN_QR_CODE).
	ErrNotReady = errors.New("session not ready")
	// ErrUnavailable: the engine is down or answered with a 5xx.
	ErrUnavailable = errors.New("engine unavailable")
	// ErrNotSupported: the capability is absent in the running engine
	// (e.g. phone pairing on a QR-only engine).
	ErrNotSupported = errors.New("not supported by engine")
	// ErrTimeout: the bounded call deadline elapsed.
	ErrTimeout = errors.New("engine call timed out")
	// ErrValidation: malformed identifier or payload, rejected locally.
	ErrValidation = errors.New("invalid input")
)

// APIError is a non-2xx engine response.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine %s: status %d", e.Endpoint, e.Status)
}

// Unwrap maps the HTTP status onto the sentinel taxonomy so callers can
// use errors.Is without looking at status codes.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == 404:
		return ErrNotFound
	case e.Status == 409:
		return ErrConflict
	case e.Status == 422:
		return ErrNotReady
	case e.Status == 501 || e.Status == 405:
		return ErrNotSupported
	case e.Status == 408:
		return ErrTimeout
	case e.Status >= 500:
		return ErrUnavailable
	default:
		return nil
	}
}
