package message

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// ErrorCode is the numeric code of a JSON-RPC error object.
type ErrorCode int

const (
	ParseError     ErrorCode = -32700 // Parse error. Invalid payload was received by the server.
	InvalidRequest ErrorCode = -32600 // Invalid Request. The payload is not a valid Request object.
	MethodNotFound ErrorCode = -32601 // Method not found. The method does not exist / is not available.
	InvalidParams  ErrorCode = -32602 // Invalid params. Invalid method parameter(s).
	InternalError  ErrorCode = -32603 // Internal error.

	// Implementation-defined server errors. Codes outside [-32768, -32000] are free for
	// application use.
	ServerErrorMin ErrorCode = -32099
	ServerErrorMax ErrorCode = -32000

	reservedMin ErrorCode = -32768
	reservedMax ErrorCode = -32000
)

// MaxMessageLen is the byte budget of Error.Message.
const MaxMessageLen = 128

// Predefined errors, usable as errors.Is targets: an *Error matches any *Error with the same code.
var (
	ErrParse          = &Error{Code: ParseError, Message: "parse error"}
	ErrInvalidRequest = &Error{Code: InvalidRequest, Message: "invalid request"}
	ErrMethodNotFound = &Error{Code: MethodNotFound, Message: "method not found"}
	ErrInvalidParams  = &Error{Code: InvalidParams, Message: "invalid params"}
	ErrInternal       = &Error{Code: InternalError, Message: "internal error"}
)

// String returns the name of a reserved code, or the number itself.
func (c ErrorCode) String() string {
	switch c {
	case ParseError:
		return "parse error"
	case InvalidRequest:
		return "invalid request"
	case MethodNotFound:
		return "method not found"
	case InvalidParams:
		return "invalid params"
	case InternalError:
		return "internal error"
	}
	if c.IsServerError() {
		return "server error " + strconv.Itoa(int(c))
	}
	return strconv.Itoa(int(c))
}

// IsReserved reports whether the code lies in the range reserved by JSON-RPC 2.0.
func (c ErrorCode) IsReserved() bool { return c >= reservedMin && c <= reservedMax }

// IsServerError reports whether the code lies in the implementation-defined server range.
func (c ErrorCode) IsServerError() bool { return c >= ServerErrorMin && c <= ServerErrorMax }

// IsApplication reports whether the code is free for application use.
func (c ErrorCode) IsApplication() bool { return !c.IsReserved() }

// Error is the JSON-RPC error object. It is also the error type handlers return to choose
// the code sent on the wire.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`        // At most MaxMessageLen bytes once built or decoded.
	Data    any       `json:"data,omitempty"` // Optional structured detail.
}

// NewError creates an error object, truncating message to MaxMessageLen bytes.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: Truncate(message)}
}

// Errorf creates an error object with a formatted, truncated message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithData returns a copy of e carrying data.
func (e *Error) WithData(data any) *Error {
	c := *e
	c.Data = data
	return &c
}

// Bounded returns e with its message truncated to MaxMessageLen bytes. e is returned as is
// when already within budget.
func (e *Error) Bounded() *Error {
	if len(e.Message) <= MaxMessageLen {
		return e
	}
	c := *e
	c.Message = Truncate(c.Message)
	return &c
}

func (e *Error) Error() string {
	if e == nil {
		return "rpc error <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("rpc error %d", e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && e != nil && t.Code == e.Code
}

// AsError maps a handler error to the error object sent on the wire. An *Error anywhere in
// the chain is used as is (bounded); any other error becomes InternalError carrying its text.
// A nil *Error wrapped in a non-nil error interface becomes ErrInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		if rpcErr == nil {
			return ErrInternal
		}
		return rpcErr.Bounded()
	}
	return NewError(InternalError, err.Error())
}

// Truncate cuts s to at most MaxMessageLen bytes without splitting a UTF-8 sequence.
// The result is always a prefix of s.
func Truncate(s string) string {
	return truncate(s, MaxMessageLen)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
