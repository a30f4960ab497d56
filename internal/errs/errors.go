package errs

import (
    "errors"
    "fmt"

    "github.com/google/uuid"
)

// Common sentinel errors for cross-layer signaling.
var (
    ErrNotFound  = errors.New("not_found")
    ErrForbidden = errors.New("forbidden")
    // ErrConflict is an optimistic-concurrency collision; safe to retry a bounded number of times.
    ErrConflict = errors.New("conflict")
    // ErrInvalid marks bad input shape or value. Never retried.
    ErrInvalid = errors.New("invalid")
    // ErrDuplicateRequest indicates an open collaboration grant already exists for the pair.
    ErrDuplicateRequest = errors.New("duplicate_request")
    // ErrPartialFailure indicates a multi-step mutation committed only some of its steps.
    ErrPartialFailure = errors.New("partial_failure")
    // ErrHasDependents indicates a row cannot be removed while other rows reference it.
    ErrHasDependents = errors.New("has_dependents")
    // ErrAlreadyExists indicates a uniqueness rule was violated.
    ErrAlreadyExists = errors.New("already_exists")
    // ErrUnauthorized indicates missing or bad credentials.
    ErrUnauthorized = errors.New("unauthorized")
)

// FieldError is a validation failure scoped to a single input field.
type FieldError struct {
    Field string
    Msg   string
}

func (e *FieldError) Error() string {
    if e.Field == "" { return e.Msg }
    return e.Field + ": " + e.Msg
}

// Is reports FieldError as ErrInvalid so callers only need errors.Is(err, ErrInvalid).
func (e *FieldError) Is(target error) bool { return target == ErrInvalid }

// Invalid returns a validation error for field.
func Invalid(field, msg string) error { return &FieldError{Field: field, Msg: msg} }

// PartialFailureError reports that a transaction row and its wallet balance effect
// went out of sync. The wallet must be reconciled.
type PartialFailureError struct {
    Op            string
    TransactionID uuid.UUID
    WalletID      uuid.UUID
    Err           error
}

func (e *PartialFailureError) Error() string {
    return fmt.Sprintf("partial failure during %s (transaction %s, wallet %s): %v", e.Op, e.TransactionID, e.WalletID, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

func (e *PartialFailureError) Is(target error) bool { return target == ErrPartialFailure }
