// Package message defines the JSON-RPC envelope exchanged between client and server.
//
// A Request or Response is the "envelope" for every call. It gets serialized by the
// codec layer under a Mode that fixes the envelope field names:
//
//	Compact:  {"i":1,"m":"hello","p":{"name":"world"}}
//	Standard: {"jsonrpc":"2.0","id":1,"method":"hello","params":{"name":"world"}}
//
// Envelopes are built per call, encoded immediately and discarded.
package message

// RequestID identifies a call among a client's in-flight calls.
type RequestID uint32

// Request carries a single call.
//
//   - ID is nil for notifications: the server runs the handler but never answers.
//   - Method is a variant of the caller's closed method union; its MethodName is the wire tag
//     and the value itself is encoded as the params.
type Request[M Method] struct {
	ID     *RequestID
	Method M
}

// NewRequest returns a request expecting a response with the given id.
func NewRequest[M Method](id RequestID, method M) Request[M] {
	return Request[M]{ID: &id, Method: method}
}

// NewNotification returns a request with no id (no response expected).
func NewNotification[M Method](method M) Request[M] {
	return Request[M]{Method: method}
}

// RequestFromParts combines the parts into a Request, useful for 3rd party deserialization.
func RequestFromParts[M Method](id *RequestID, method M) Request[M] {
	return Request[M]{ID: id, Method: method}
}

// IsNotification reports whether the request carries no id.
func (r Request[M]) IsNotification() bool { return r.ID == nil }

// Parts splits the request into its id and method.
func (r Request[M]) Parts() (*RequestID, M) { return r.ID, r.Method }

// Response carries the outcome of a call.
//
//   - On success: Error is nil and Result holds the handler's value.
//   - On failure: Error is non-nil and Result is the zero value.
type Response[R any] struct {
	ID     RequestID
	Result R
	Error  *Error
}

// NewResult returns a success response for the call with the given id.
func NewResult[R any](id RequestID, result R) *Response[R] {
	return &Response[R]{ID: id, Result: result}
}

// NewErrorResponse returns an error response for the call with the given id.
func NewErrorResponse[R any](id RequestID, err *Error) *Response[R] {
	return &Response[R]{ID: id, Error: err}
}

// ResponseFromOutcome builds the response for a handler outcome. A non-nil err becomes
// the error object (see AsError), otherwise result is sent.
func ResponseFromOutcome[R any](id RequestID, result R, err error) *Response[R] {
	if err != nil {
		return NewErrorResponse[R](id, AsError(err))
	}
	return NewResult(id, result)
}

// IsError reports whether the response carries an error object.
func (r *Response[R]) IsError() bool { return r.Error != nil }

// Parts splits the response into its id, result and error object.
func (r *Response[R]) Parts() (RequestID, R, *Error) { return r.ID, r.Result, r.Error }

// Outcome converts the response into the usual Go (value, error) pair.
func (r *Response[R]) Outcome() (R, error) {
	if r.Error != nil {
		var zero R
		return zero, r.Error
	}
	return r.Result, nil
}
