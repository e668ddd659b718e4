// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/creachadair/capflow/loop"
)

// A CallContext holds the state of one in-flight invocation: its
// parameters, its (lazily allocated) results, cancellation state, and
// tail-call chaining. There is exactly one implementation in this local
// core — requests and dispatch share the same concrete context, the way
// spec.md §4.2 describes a single LocalCallContext shared by the client
// and server sides of a call.
type CallContext struct {
	mu sync.Mutex

	params         *Arena
	paramsReleased bool

	results         *Arena
	resultsAlloced  bool
	tailCallStarted bool
	response        *Response

	clientRef Hook // kept alive until the context is released

	cancelAllowed      *loop.Future[struct{}]
	cancelAllowedSetUp *loop.Fulfiller[struct{}]
	cancelRequested    atomic.Bool

	tailCallFulfiller *loop.Fulfiller[Pipeline]
	tailCallFuture    *loop.Future[Pipeline]

	refs atomic.Int32
}

func newCallContext(params *Arena, clientRef Hook, cancelAllowed *loop.Future[struct{}], cancelAllowedSetUp *loop.Fulfiller[struct{}]) *CallContext {
	cc := &CallContext{
		params:             params,
		clientRef:          clientRef,
		cancelAllowed:      cancelAllowed,
		cancelAllowedSetUp: cancelAllowedSetUp,
	}
	cc.tailCallFuture, cc.tailCallFulfiller = loop.NewFuture[Pipeline]()
	cc.refs.Store(1)
	return cc
}

// GetParams returns a reader over the request message. It fails once
// ReleaseParams has been called.
func (cc *CallContext) GetParams() (Ptr, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.paramsReleased {
		return Ptr{}, usageErrorf("GetParams", "params were already released")
	}
	return NewPtr(cc.params.Root()), nil
}

// ReleaseParams drops the request message, freeing its arena. It is safe
// to call more than once.
func (cc *CallContext) ReleaseParams() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.paramsReleased = true
	cc.params = nil
}

// GetResults lazily allocates a response message on first call and
// returns a builder into its root. Later calls are idempotent and return
// the same builder. sizeHint is advisory.
func (cc *CallContext) GetResults(sizeHint int) (*Arena, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.response == nil {
		arena := NewArena(sizeHint)
		cc.results = arena
		cc.response = &Response{arena: arena}
	}
	return cc.results, nil
}

// response_ returns the response set by GetResults or a completed tail
// call, or nil if neither has happened yet.
func (cc *CallContext) response_() *Response {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.response
}

// TailCall forwards this call to req: req is sent, its completion future
// becomes this call's completion, and its pipeline is delivered through
// OnTailCall. TailCall requires that GetResults has not yet been called,
// and that no earlier tail call has started (spec.md §9 resolves the
// "second tail call" open question as a usage error).
func (cc *CallContext) TailCall(req *Request) (*loop.Future[struct{}], error) {
	completion, pipeline, err := cc.DirectTailCall(req)
	if err != nil {
		return loop.Failed[struct{}](err), err
	}
	cc.tailCallFulfiller.Fulfill(pipeline)
	return completion, nil
}

// DirectTailCall is like TailCall but returns the (completion, pipeline)
// pair directly instead of delivering the pipeline through OnTailCall. It
// releases params as a side effect, matching spec.md §4.2.
func (cc *CallContext) DirectTailCall(req *Request) (*loop.Future[struct{}], Pipeline, error) {
	cc.mu.Lock()
	if cc.response != nil {
		cc.mu.Unlock()
		return nil, nil, usageErrorf("TailCall", "results struct was already initialized")
	}
	if cc.tailCallStarted {
		cc.mu.Unlock()
		return nil, nil, usageErrorf("TailCall", "a tail call was already started for this context")
	}
	cc.tailCallStarted = true
	cc.mu.Unlock()
	cc.ReleaseParams()

	respFut, pipeline := req.Send(tailCallCtx)
	void := loop.Map(respFut, func(resp *Response) (struct{}, error) {
		cc.mu.Lock()
		cc.response = resp
		cc.mu.Unlock()
		return struct{}{}, nil
	})
	return void, pipeline, nil
}

// OnTailCall returns a future that fires with the tail-called pipeline, or
// never if no tail call occurs for this context.
func (cc *CallContext) OnTailCall() *loop.Future[Pipeline] { return cc.tailCallFuture }

// AllowAsyncCancellation signals that the server has opted into async
// cancellation. It requires that params were already released.
func (cc *CallContext) AllowAsyncCancellation() error {
	cc.mu.Lock()
	if !cc.paramsReleased {
		cc.mu.Unlock()
		return usageErrorf("AllowAsyncCancellation", "must call ReleaseParams before AllowAsyncCancellation")
	}
	cc.mu.Unlock()
	cc.cancelAllowedSetUp.Fulfill(struct{}{})
	return nil
}

// IsCanceled reports whether the client has dropped interest in this
// call.
func (cc *CallContext) IsCanceled() bool { return cc.cancelRequested.Load() }

// markCanceled records that the client has dropped interest. It is
// exported within the package only: callers observe cancellation through
// IsCanceled, and it is set internally by Request.Send's cancellation
// watcher, the Go replacement for the original C++ LocalCallContext's
// promise-destructor Canceler guard (see SPEC_FULL.md's "supplemented
// features" section).
func (cc *CallContext) markCanceled() {
	if !cc.cancelRequested.Swap(true) {
		rootMetrics.callsCanceled.Add(1)
	}
}

// AddRef increases the shared reference count and returns cc for
// chaining.
func (cc *CallContext) AddRef() *CallContext {
	cc.refs.Add(1)
	return cc
}

// Release drops one reference; the last holder releases the held client
// reference.
func (cc *CallContext) Release() {
	if cc.refs.Add(-1) == 0 {
		if cc.clientRef != nil {
			cc.clientRef.Release()
		}
	}
}

// tailCallCtx is the context passed to a tail-called request's Send. Tail
// calls are an internal forwarding mechanism, not a client-initiated call
// a caller can cancel directly; cancellation of the outer call already
// flows through the outer request's own watcher.
var tailCallCtx = context.Background()
