package middleware

import (
	"time"

	"go.uber.org/zap"

	"mini-jsonrpc/message"
)

// LoggingMiddleware logs every call with its duration. Failed calls are logged at Warn
// with the error code that will be sent.
func LoggingMiddleware[M message.Method, R any, S any](logger *zap.Logger) Middleware[M, R, S] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc[M, R, S]) HandlerFunc[M, R, S] {
		return func(method M, source S) (R, error) {
			start := time.Now()
			result, err := next(method, source)

			fields := []zap.Field{
				zap.String("method", method.MethodName()),
				zap.Any("source", source),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				rpcErr := message.AsError(err)
				fields = append(fields, zap.Int("code", int(rpcErr.Code)), zap.Error(err))
				logger.Warn("call failed", fields...)
			} else {
				logger.Info("call handled", fields...)
			}
			return result, err
		}
	}
}
