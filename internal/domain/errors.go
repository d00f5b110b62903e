package domain

import (
	"errors"
	"fmt"
)

// Precondition failures: reported to the caller, no state change.
var (
	ErrEmptyBatch    = errors.New("batch is empty")
	ErrConcurrentRun = errors.New("a publish run is already in progress")
	ErrBatchLocked   = errors.New("batch is locked by an active publish run")
	ErrRunNotFound   = errors.New("run not found")
)

// ValidationError rejects bad operator input. It never aborts a batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SessionError means the marketplace session could not be established or was
// lost; it aborts a run before any further offer is touched.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// SubmissionError is a single-offer failure: recorded in the run report, the
// run continues with the next offer.
type SubmissionError struct {
	OfferName string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %q: %v", e.OfferName, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PersistenceError means an archive or store write failed. The live batch is
// preserved, never silently dropped.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
