package client

import (
	"errors"
	"fmt"
)

// Outcome classifies the result of an API function.
type Outcome int

const (
	Success Outcome = iota
	Unauthenticated
	NetworkError
	StructuredError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Unauthenticated:
		return "unauthenticated"
	case NetworkError:
		return "network error"
	case StructuredError:
		return "structured error"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Error is the failure returned by every API function. Message is the
// user-facing text; Status is the HTTP status when a response was received.
type Error struct {
	Outcome Outcome
	Status  int
	Message string
	Err     error
}

// Sentinels for errors.Is. They match any *Error with the same Outcome.
var (
	ErrUnauthenticated = &Error{Outcome: Unauthenticated, Message: NotLoggedInMessage}
	ErrNetwork         = &Error{Outcome: NetworkError, Message: NetworkErrorMessage}
	ErrStructured      = &Error{Outcome: StructuredError, Message: UnknownErrorMessage}
)

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Outcome.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Outcome == e.Outcome
}

// OutcomeOf maps err to its Outcome. nil is Success; errors not produced by
// this package are treated as StructuredError.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Outcome
	}
	return StructuredError
}

func unauthenticatedError() *Error {
	return &Error{Outcome: Unauthenticated, Message: NotLoggedInMessage}
}

func networkError(err error) *Error {
	return &Error{Outcome: NetworkError, Message: NetworkErrorMessage, Err: err}
}
