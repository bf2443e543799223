package plan

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies lifecycle and generation failures for callers.
type Kind string

const (
	KindNotFound          Kind = "plan_not_found"
	KindExpired           Kind = "plan_expired"
	KindInvalidRequest    Kind = "invalid_request"
	KindGenerationFailure Kind = "generation_failure"
)

// HintCreateNew is attached to not-found and expired errors.
const HintCreateNew = "create a new plan"

// Error carries a machine readable kind plus remediation details.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	// LiveIDs lists the keys the store held when a lookup failed.
	LiveIDs []string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Hint != "" {
		b.WriteString(". Please ")
		b.WriteString(e.Hint)
		b.WriteString(".")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so errors.Is(err, ErrExpired) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrExpired           = &Error{Kind: KindExpired}
	ErrInvalidRequest    = &Error{Kind: KindInvalidRequest}
	ErrGenerationFailure = &Error{Kind: KindGenerationFailure}
)

func notFound(id string, live []string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("Plan not found: %s", id),
		Hint:    HintCreateNew,
		LiveIDs: live,
	}
}

func expired(id string) *Error {
	return &Error{
		Kind:    KindExpired,
		Message: fmt.Sprintf("Plan expired: %s", id),
		Hint:    HintCreateNew,
	}
}

// Invalid reports malformed caller input.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// GenerationFailed wraps a failure raised while producing artifacts.
func GenerationFailed(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindGenerationFailure, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the kind of err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
