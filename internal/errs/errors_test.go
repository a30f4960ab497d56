package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestFieldErrorMatchesInvalid(t *testing.T) {
	err := fmt.Errorf("create wallet: %w", Invalid("name", "required"))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "name" {
		t.Fatalf("expected field error for name, got %+v", fe)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("field error must not match ErrNotFound")
	}
}

func TestPartialFailureKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&PartialFailureError{Op: "create", TransactionID: uuid.New(), WalletID: uuid.New(), Err: cause})
	if !errors.Is(err, ErrPartialFailure) {
		t.Fatalf("expected ErrPartialFailure")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	var pf *PartialFailureError
	if !errors.As(fmt.Errorf("wrap: %w", err), &pf) || pf.Op != "create" {
		t.Fatalf("expected *PartialFailureError through wrapping")
	}
}
