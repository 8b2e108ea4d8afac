// Package server implements the JSON-RPC dispatcher: it turns one request payload into at
// most one response payload, leaving all I/O to the transport.
//
// Request processing pipeline:
//
//	payload → codec.DecodeRequest → Middleware Chain → handler → codec.EncodeResponse → payload
//
// Notifications run through the same pipeline but never produce a response.
package server

import (
	"errors"

	"go.uber.org/zap"

	"mini-jsonrpc/codec"
	"mini-jsonrpc/message"
	"mini-jsonrpc/middleware"
)

// Options configures a Server. The zero value is usable.
type Options struct {
	// Logger receives decode and encode failures. Defaults to a no-op logger.
	Logger *zap.Logger
	// AllowUnknownFields relaxes request validation, see codec.DecodeOptions.
	AllowUnknownFields bool
	// LogRequests installs middleware.LoggingMiddleware in front of the handler.
	LogRequests bool
	// RateLimit, when positive, installs middleware.RateLimitMiddleware allowing that many
	// calls per second with the given Burst.
	RateLimit float64
	Burst     int
	// Recover installs middleware.RecoverMiddleware, turning handler panics into
	// InternalError responses.
	Recover bool
}

// Server decodes requests of mode Md and method union M, dispatches them to a handler
// producing results of union R, and encodes the outcome. S is the type of the opaque
// source value the transport passes along with each payload.
type Server[Md message.Mode, M message.Method, R any, S any] struct {
	codec       codec.Codec
	methods     *message.MethodSet[M]
	decodeOpts  codec.DecodeOptions
	logger      *zap.Logger
	middlewares []middleware.Middleware[M, R, S] // Registered middlewares (applied in order)
	business    middleware.HandlerFunc[M, R, S]  // The user handler
	handler     middleware.HandlerFunc[M, R, S]  // middleware(middleware(...(business)))
}

// NewServer creates a server dispatching to handler. Middlewares requested by opts are
// installed first, in the order logging, rate limit, recover. Recovery only covers what
// runs inside it: middlewares added later with Use and the handler.
func NewServer[Md message.Mode, M message.Method, R any, S any](
	c codec.Codec,
	methods *message.MethodSet[M],
	handler middleware.HandlerFunc[M, R, S],
	opts Options,
) *Server[Md, M, R, S] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	svr := &Server[Md, M, R, S]{
		codec:      c,
		methods:    methods,
		decodeOpts: codec.DecodeOptions{AllowUnknownFields: opts.AllowUnknownFields},
		logger:     logger,
		business:   handler,
	}
	if opts.LogRequests {
		svr.middlewares = append(svr.middlewares, middleware.LoggingMiddleware[M, R, S](logger))
	}
	if opts.RateLimit > 0 {
		svr.middlewares = append(svr.middlewares, middleware.RateLimitMiddleware[M, R, S](opts.RateLimit, opts.Burst))
	}
	if opts.Recover {
		svr.middlewares = append(svr.middlewares, middleware.RecoverMiddleware[M, R, S](logger))
	}
	svr.buildChain()
	return svr
}

// Use registers a middleware. Middlewares are applied in the order they are added.
// Use must not be called while requests are being handled.
func (svr *Server[Md, M, R, S]) Use(mw middleware.Middleware[M, R, S]) {
	svr.middlewares = append(svr.middlewares, mw)
	svr.buildChain()
}

// buildChain wraps the handler once, not per request:
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
func (svr *Server[Md, M, R, S]) buildChain() {
	svr.handler = middleware.Chain(svr.middlewares...)(svr.business)
}

// HandleRequest runs an already decoded request. It returns nil for notifications.
func (svr *Server[Md, M, R, S]) HandleRequest(req message.Request[M], source S) *message.Response[R] {
	result, err := svr.handler(req.Method, source)
	if req.ID == nil {
		if err != nil {
			svr.logger.Debug("notification failed",
				zap.String("method", req.Method.MethodName()),
				zap.Any("source", source),
				zap.Error(err),
			)
		}
		return nil
	}
	return message.ResponseFromOutcome(*req.ID, result, err)
}

// HandleRequestPayload decodes payload, runs the handler and returns the encoded response.
// It returns nil when nothing must be sent back: for notifications, and for payloads too
// broken to carry a usable id.
//
// A payload that fails to decode but still carries an id is answered with an error
// response: MethodNotFound for an unknown method, InvalidParams for bad params, and
// InvalidRequest otherwise.
func (svr *Server[Md, M, R, S]) HandleRequestPayload(payload []byte, source S) []byte {
	req, err := codec.DecodeRequest[Md](svr.codec, svr.methods, payload, svr.decodeOpts)
	if err != nil {
		svr.logger.Warn("failed to decode request", zap.Any("source", source), zap.Error(err))
		return svr.rejectPayload(payload, err)
	}

	resp := svr.HandleRequest(req, source)
	if resp == nil {
		return nil
	}
	return svr.encode(resp)
}

// rejectPayload builds the error response for a request that failed to decode.
func (svr *Server[Md, M, R, S]) rejectPayload(payload []byte, decodeErr error) []byte {
	// An id that is present but not an unsigned integer is as unusable as a missing one.
	if errors.Is(decodeErr, codec.ErrMalformed) || errors.Is(decodeErr, codec.ErrIDType) {
		return nil
	}
	id, ok := codec.RecoverID[Md](svr.codec, payload)
	if !ok {
		return nil
	}

	var rpcErr *message.Error
	switch {
	case errors.Is(decodeErr, codec.ErrUnknownMethod):
		rpcErr = message.ErrMethodNotFound
	case errors.Is(decodeErr, codec.ErrInvalidParams):
		rpcErr = message.NewError(message.InvalidParams, decodeErr.Error())
	default:
		rpcErr = message.NewError(message.InvalidRequest, decodeErr.Error())
	}
	return svr.encode(message.NewErrorResponse[R](id, rpcErr))
}

// encode encodes resp, falling back to an InternalError response when the result cannot
// be encoded. It returns nil only when even the fallback fails.
func (svr *Server[Md, M, R, S]) encode(resp *message.Response[R]) []byte {
	data, err := codec.EncodeResponse[Md](svr.codec, resp)
	if err == nil {
		return data
	}
	svr.logger.Error("failed to encode response", zap.Uint32("id", uint32(resp.ID)), zap.Error(err))

	fallback := message.NewErrorResponse[R](resp.ID, message.ErrInternal)
	data, err = codec.EncodeResponse[Md](svr.codec, fallback)
	if err != nil {
		svr.logger.Error("failed to encode fallback response", zap.Uint32("id", uint32(resp.ID)), zap.Error(err))
		return nil
	}
	return data
}
