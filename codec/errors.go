package codec

import (
	"errors"
	"fmt"
)

// Decode failure kinds. Every error returned while decoding an envelope is a *DecodeError
// wrapping exactly one of these, so callers can test with errors.Is.
var (
	ErrMalformed        = errors.New("codec: malformed payload")
	ErrBatchUnsupported = fmt.Errorf("%w: batch payloads are not supported", ErrMalformed)
	ErrMissingField     = errors.New("codec: missing field")
	ErrUnexpectedField  = errors.New("codec: unexpected field")
	ErrIDType           = errors.New("codec: id is not an unsigned 32-bit integer")
	ErrVersionMismatch  = errors.New("codec: invalid protocol version")
	ErrUnknownMethod    = errors.New("codec: unknown method")
	ErrInvalidParams    = errors.New("codec: invalid params")
	ErrInvalidField     = errors.New("codec: invalid field")
	ErrNoResultVariant  = errors.New("codec: result matches no variant")
)

// ErrNilMethod is returned when encoding a request whose method is nil.
var ErrNilMethod = errors.New("codec: request has no method")

// DecodeError describes why a payload could not be decoded into an envelope.
type DecodeError struct {
	Kind  error  // One of the Err* kinds above.
	Field string // Envelope member involved, empty when the failure is not tied to one.
	Err   error  // Underlying cause, may be nil.
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if e.Field != "" {
		msg += fmt.Sprintf(" %q", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func decodeErr(kind error, field string, err error) *DecodeError {
	return &DecodeError{Kind: kind, Field: field, Err: err}
}
