package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Conflict("apply", "booking %s moved to version %d", "b1", 3)
	wrapped := fmt.Errorf("check in: %w", base)

	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("KindOf = %q, want %q", got, KindConflict)
	}
	if !Is(wrapped, KindConflict) {
		t.Fatal("Is(conflict) = false")
	}
	if Is(wrapped, KindValidation) {
		t.Fatal("Is(validation) = true for a conflict")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("plain error should have no kind")
	}
}

func TestValidationMessageIsStable(t *testing.T) {
	err := Validation("create booking", map[string]string{"Currency": "required", "Amount": "min"})
	want := "create booking: validation failed (Amount: min; Currency: required)"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Conflict("op", "x"), true},
		{External("op", errors.New("amqp down")), true},
		{InvalidTransition("op", "x"), false},
		{Invariant("op", "x"), false},
	}
	for _, tc := range cases {
		var e *Error
		if !errors.As(tc.err, &e) {
			t.Fatalf("not an *Error: %v", tc.err)
		}
		if e.Retryable() != tc.want {
			t.Errorf("%s retryable = %v, want %v", e.Kind, e.Retryable(), tc.want)
		}
	}
}
