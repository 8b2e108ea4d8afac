// Package client implements the caller side of JSON-RPC: it encodes calls, hands out
// request ids and matches response payloads back to the calls they answer.
//
// The client never touches I/O. The caller sends Call.Payload over its own transport and
// feeds whatever comes back into HandleResponse:
//
//	call, _ := cli.Request(Hello{Name: "world"})   // {"i":1,"m":"hello","p":{"name":"world"}}
//	reply := transport.RoundTrip(call.Payload)       // {"i":1,"r":"Hello, world"}
//	result, err := call.HandleResponse(reply)        // "Hello, world", nil
package client

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"mini-jsonrpc/codec"
	"mini-jsonrpc/message"
)

var (
	// ErrUnmatchedResponse is returned for a response whose id matches no pending call.
	ErrUnmatchedResponse = errors.New("client: response matches no pending call")
	// ErrCallInFlight is returned by Request in single-slot mode while a call is pending.
	ErrCallInFlight = errors.New("client: a call is already in flight")
)

// UnmatchedPolicy decides what HandleResponse does with a response nobody is waiting for.
type UnmatchedPolicy int

const (
	// RejectUnmatched fails with ErrUnmatchedResponse.
	RejectUnmatched UnmatchedPolicy = iota
	// AcceptUnmatched returns the response outcome as if it had been expected.
	AcceptUnmatched
)

func (p UnmatchedPolicy) String() string {
	switch p {
	case RejectUnmatched:
		return "reject"
	case AcceptUnmatched:
		return "accept"
	}
	return fmt.Sprintf("UnmatchedPolicy(%d)", int(p))
}

// Options configures a Client. The zero value is usable.
type Options struct {
	// Logger receives unmatched and undecodable responses. Defaults to a no-op logger.
	Logger *zap.Logger
	// AllowUnknownFields relaxes response validation, see codec.DecodeOptions.
	AllowUnknownFields bool
	Unmatched          UnmatchedPolicy
	// SingleSlot tracks at most one outstanding call.
	SingleSlot bool
}

// Client builds requests of mode Md and method union M and decodes responses whose
// results belong to union R. It is safe for concurrent use.
type Client[Md message.Mode, M message.Method, R any] struct {
	codec      codec.Codec
	results    *message.ResultSet[R]
	decodeOpts codec.DecodeOptions
	unmatched  UnmatchedPolicy
	singleSlot bool
	logger     *zap.Logger

	seq     atomic.Uint32                  // Last id handed out; the first call gets 1
	mu      sync.Mutex                     // Guards pending
	pending map[message.RequestID]struct{} // Ids of calls still waiting for a response
}

// Call is one outstanding request.
type Call[Md message.Mode, M message.Method, R any] struct {
	ID      message.RequestID
	Payload []byte // Encoded request, ready for the transport

	client *Client[Md, M, R]
}

func NewClient[Md message.Mode, M message.Method, R any](c codec.Codec, results *message.ResultSet[R], opts Options) *Client[Md, M, R] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client[Md, M, R]{
		codec:      c,
		results:    results,
		decodeOpts: codec.DecodeOptions{AllowUnknownFields: opts.AllowUnknownFields},
		unmatched:  opts.Unmatched,
		singleSlot: opts.SingleSlot,
		logger:     logger,
		pending:    make(map[message.RequestID]struct{}),
	}
}

// Request encodes a call to method under a fresh id and records it as pending.
func (cli *Client[Md, M, R]) Request(method M) (*Call[Md, M, R], error) {
	cli.mu.Lock()
	if cli.singleSlot && len(cli.pending) > 0 {
		cli.mu.Unlock()
		return nil, ErrCallInFlight
	}
	id := cli.nextID()
	cli.pending[id] = struct{}{}
	cli.mu.Unlock()

	payload, err := codec.EncodeRequest[Md](cli.codec, message.NewRequest(id, method))
	if err != nil {
		cli.Forget(id)
		return nil, err
	}
	return &Call[Md, M, R]{ID: id, Payload: payload, client: cli}, nil
}

// nextID returns the next id not currently pending. The counter wraps at 32 bits.
// cli.mu must be held.
func (cli *Client[Md, M, R]) nextID() message.RequestID {
	for {
		id := message.RequestID(cli.seq.Add(1))
		if _, busy := cli.pending[id]; !busy {
			return id
		}
	}
}

// Notify encodes a notification. Nothing is recorded: the server never answers it.
func (cli *Client[Md, M, R]) Notify(method M) ([]byte, error) {
	return codec.EncodeRequest[Md](cli.codec, message.NewNotification(method))
}

// HandleResponse decodes a response payload and settles the pending call it answers.
//
// A payload that fails to decode returns the *codec.DecodeError and leaves every call
// pending. An error response returns its *message.Error.
func (cli *Client[Md, M, R]) HandleResponse(payload []byte) (message.RequestID, R, error) {
	var zero R
	resp, err := cli.decode(payload)
	if err != nil {
		return 0, zero, err
	}

	if !cli.settle(resp.ID) {
		cli.logger.Warn("unmatched response",
			zap.Uint32("id", uint32(resp.ID)),
			zap.Stringer("policy", cli.unmatched),
		)
		if cli.unmatched == RejectUnmatched {
			return resp.ID, zero, fmt.Errorf("%w: id %d", ErrUnmatchedResponse, resp.ID)
		}
	}
	result, err := resp.Outcome()
	return resp.ID, result, err
}

// HandleResponse decodes the response to this call. A response carrying any other id
// fails with ErrUnmatchedResponse and leaves the call pending.
func (call *Call[Md, M, R]) HandleResponse(payload []byte) (R, error) {
	var zero R
	resp, err := call.client.decode(payload)
	if err != nil {
		return zero, err
	}
	if resp.ID != call.ID {
		return zero, fmt.Errorf("%w: got id %d, want %d", ErrUnmatchedResponse, resp.ID, call.ID)
	}
	call.client.settle(call.ID)
	return resp.Outcome()
}

// Forget drops a pending call, e.g. after the transport gave up on it.
func (cli *Client[Md, M, R]) Forget(id message.RequestID) {
	cli.settle(id)
}

// Pending returns the number of calls waiting for a response.
func (cli *Client[Md, M, R]) Pending() int {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	return len(cli.pending)
}

func (cli *Client[Md, M, R]) decode(payload []byte) (*message.Response[R], error) {
	resp, err := codec.DecodeResponse[Md](cli.codec, cli.results, payload, cli.decodeOpts)
	if err != nil {
		cli.logger.Debug("failed to decode response", zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// settle removes id from the pending set and reports whether it was there.
func (cli *Client[Md, M, R]) settle(id message.RequestID) bool {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	_, ok := cli.pending[id]
	delete(cli.pending, id)
	return ok
}
