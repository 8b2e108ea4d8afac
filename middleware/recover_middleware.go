package middleware

import (
	"go.uber.org/zap"

	"mini-jsonrpc/message"
)

// RecoverMiddleware turns a panicking handler into an internal error response.
func RecoverMiddleware[M message.Method, R any, S any](logger *zap.Logger) Middleware[M, R, S] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc[M, R, S]) HandlerFunc[M, R, S] {
		return func(method M, source S) (result R, err error) {
			defer func() {
				if p := recover(); p != nil {
					logger.Error("handler panicked",
						zap.String("method", method.MethodName()),
						zap.Any("panic", p),
						zap.Stack("stack"),
					)
					var zero R
					result, err = zero, message.Errorf(message.InternalError, "panic: %v", p)
				}
			}()
			return next(method, source)
		}
	}
}
