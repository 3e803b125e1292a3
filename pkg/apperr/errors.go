package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation         Kind = "validation"
	KindInvalidTransition  Kind = "invalid_transition"
	KindConflict           Kind = "conflict"
	KindInvariant          Kind = "invariant_violation"
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindTimerStale         Kind = "timer_stale"
	KindExternalDependency Kind = "external_dependency"
)

// Error is the typed error returned by every engine operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may reload state and try again.
func (e *Error) Retryable() bool {
	return e.Kind == KindConflict || e.Kind == KindExternalDependency
}

func Validation(op string, fields map[string]string) error {
	return &Error{Kind: KindValidation, Op: op, Message: "validation failed", Fields: fields}
}

func InvalidTransition(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Conflict(op, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Invariant(op, format string, args ...any) error {
	return &Error{Kind: KindInvariant, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(op, format string, args ...any) error {
	return &Error{Kind: KindForbidden, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Stale(op, format string, args ...any) error {
	return &Error{Kind: KindTimerStale, Op: op, Message: fmt.Sprintf(format, args...)}
}

func External(op string, err error) error {
	return &Error{Kind: KindExternalDependency, Op: op, Message: "downstream dispatch failed", Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" when none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
