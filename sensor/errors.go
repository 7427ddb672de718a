package sensor

import (
	"errors"
	"fmt"
)

// Kind classifies the errors a sensor hands back to its host.
type Kind int

const (
	KindConfig Kind = iota + 1
	KindTransport
	KindFetch
	KindMalformedPayload
)

var (
	ErrConfig           = errors.New("configuration error")
	ErrTransport        = errors.New("transport error")
	ErrFetch            = errors.New("fetch error")
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrNotInitialized is returned when PollOnce runs before Initialize.
	ErrNotInitialized = errors.New("sensor not initialized")
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindFetch:
		return "fetch"
	case KindMalformedPayload:
		return "malformed payload"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindTransport:
		return ErrTransport
	case KindFetch:
		return ErrFetch
	case KindMalformedPayload:
		return ErrMalformedPayload
	}
	return nil
}

// Error is returned by sensor operations. errors.Is matches it against the
// sentinel of its Kind as well as the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
