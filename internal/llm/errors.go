package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies client failures
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindConfiguration
	KindInvalidRequest
	KindTransport
	KindDecode
)

// Sentinels for errors.Is matching against an *Error's kind
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrInvalidRequest = errors.New("invalid request")
	ErrTransport      = errors.New("transport error")
	ErrDecode         = errors.New("decode error")
	ErrUnexpected     = errors.New("unexpected error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindTransport:
		return ErrTransport
	case KindDecode:
		return ErrDecode
	default:
		return ErrUnexpected
	}
}

func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// Error is the single error type returned by the client
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // set for non-2xx responses
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConfiguration:
		return e.Message
	case KindInvalidRequest:
		return "invalid request: " + e.Message
	case KindTransport:
		return "API request failed: " + e.Message
	case KindDecode:
		return "failed to parse API response: " + e.Message
	default:
		return "unexpected error: " + e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
