package middleware

import (
	"golang.org/x/time/rate"

	"mini-jsonrpc/message"
)

// ErrRateLimited is returned for calls rejected by RateLimitMiddleware. Its code lies in
// the implementation-defined server error range.
var ErrRateLimited = message.NewError(message.ServerErrorMax, "rate limit exceeded")

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
func RateLimitMiddleware[M message.Method, R any, S any](r float64, burst int) Middleware[M, R, S] {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc[M, R, S]) HandlerFunc[M, R, S] {
		return func(method M, source S) (R, error) {
			if !limiter.Allow() {
				var zero R
				return zero, ErrRateLimited
			}
			return next(method, source)
		}
	}
}
