package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed challenges or configuration. Callers may
	// retry with corrected input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptySociety is returned when a cycle is attempted with zero agents.
	ErrEmptySociety = errors.New("empty society")
	// ErrExhaustedCatalog is returned by generators that cannot supply another challenge.
	ErrExhaustedCatalog = errors.New("exhausted catalog")
)

// ErrorKind is the failure category logged by the scheduler.
type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "INVALID_INPUT"
	KindEmptySociety     ErrorKind = "EMPTY_SOCIETY"
	KindExhaustedCatalog ErrorKind = "EXHAUSTED_CATALOG"
	KindInternal         ErrorKind = "INTERNAL"
)

// KindOf classifies err. A nil error has no kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptySociety):
		return KindEmptySociety
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrExhaustedCatalog):
		return KindExhaustedCatalog
	default:
		return KindInternal
	}
}

// CycleError wraps the failure that aborted a cycle.
type CycleError struct {
	Cycle int
	Phase Phase
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %d aborted in phase %s: %v", e.Cycle, e.Phase, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }
