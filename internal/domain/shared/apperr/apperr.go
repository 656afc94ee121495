package apperr

import "errors"

// Kind classifies failures so transports can map them without knowing every sentinel.
type Kind string

const (
	Validation        Kind = "validation"
	Conflict          Kind = "conflict"
	InvalidTransition Kind = "invalid_transition"
	Upstream          Kind = "upstream"
	Invariant         Kind = "invariant"
	NotFound          Kind = "not_found"
	Unauthenticated   Kind = "unauthenticated"
	Forbidden         Kind = "forbidden"
)

// Error carries a Kind next to the message. Two errors with the same Kind and an
// empty Msg on the target side match under errors.Is, which lets callers test
// for a whole class with the Err* values below.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

var (
	ErrValidation        = &Error{Kind: Validation}
	ErrConflict          = &Error{Kind: Conflict}
	ErrInvalidTransition = &Error{Kind: InvalidTransition}
	ErrUpstream          = &Error{Kind: Upstream}
	ErrInvariant         = &Error{Kind: Invariant}
	ErrNotFound          = &Error{Kind: NotFound}
)

// ErrConcurrentUpdate is returned by stores when a versioned write lost a race.
var ErrConcurrentUpdate = New(Conflict, "storage: concurrent update detected")

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind to an existing error, keeping it reachable through errors.Unwrap.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t == e {
		return true
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in the chain, or "" when none is present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
