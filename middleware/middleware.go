// Package middleware wraps server handlers with cross-cutting behavior.
//
// Middlewares see the decoded method and the transport-supplied source, and the handler's
// (result, error) outcome. Envelope concerns such as ids and notifications stay in the
// server.
package middleware

import (
	"mini-jsonrpc/message"
)

// HandlerFunc runs the user logic for one call. source is passed through from the transport
// unmodified. A returned *message.Error chooses the wire code; any other error is sent as
// an internal error.
type HandlerFunc[M message.Method, R any, S any] func(method M, source S) (R, error)

type Middleware[M message.Method, R any, S any] func(next HandlerFunc[M, R, S]) HandlerFunc[M, R, S]

// Chain 将多个中间件组合成一个中间件
func Chain[M message.Method, R any, S any](middlewares ...Middleware[M, R, S]) Middleware[M, R, S] {
	return func(next HandlerFunc[M, R, S]) HandlerFunc[M, R, S] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
