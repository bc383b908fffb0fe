package ipmibmc

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("Dispatch", ErrInvalid, "bad command")

	if err.Op != "Dispatch" {
		t.Errorf("Expected Op=Dispatch, got %s", err.Op)
	}
	if err.Code != ErrInvalid {
		t.Errorf("Expected Code=ErrInvalid, got %s", err.Code)
	}

	expected := "ipmibmc: Dispatch: bad command"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapErrorPreservesCauseAndSupportsUnwrap(t *testing.T) {
	cause := errors.New("fifo full")
	err := WrapError("Handle", ErrBusy, cause)

	if err.Code != ErrBusy {
		t.Errorf("Expected Code=ErrBusy, got %s", err.Code)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the wrapped cause")
	}
}

func TestWrapErrorNilReturnsNil(t *testing.T) {
	if WrapError("op", ErrBusy, nil) != nil {
		t.Error("Expected WrapError(nil) to return nil")
	}
}

func TestErrorIsComparesByCode(t *testing.T) {
	a := NewError("op1", ErrTimeout, "slow")
	b := NewError("op2", ErrTimeout, "also slow")
	c := NewError("op3", ErrBusy, "different code")

	if !errors.Is(a, b) {
		t.Error("Expected two errors with the same Code to satisfy errors.Is")
	}
	if errors.Is(a, c) {
		t.Error("Expected errors with different Codes not to satisfy errors.Is")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("TEST", ErrTimeout, "operation timed out")

	if !IsCode(err, ErrTimeout) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrInvalid) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrTimeout) {
		t.Error("IsCode should return false for nil error")
	}
}
