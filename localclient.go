// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

import (
	"context"
	"sync/atomic"

	"github.com/creachadair/capflow/loop"
)

// A Server implements the method table a localClient dispatches calls
// against. Dispatch should use cc.GetParams to read the call's arguments
// and either cc.GetResults to build a reply in place, or cc.TailCall /
// cc.DirectTailCall to forward the call to another capability entirely.
// Dispatch runs on the loop.Loop the owning localClient was constructed
// with, never on the calling goroutine, so a Server implementation never
// needs its own locking against concurrent calls.
//
// Dispatch returns a completion future rather than a plain error so that a
// tail call's own completion can become the call's completion directly
// (spec.md §8 item 4): an implementation that calls cc.TailCall returns the
// future TailCall hands back; one that answers directly returns
// loop.Resolved(struct{}{}) or loop.Failed[struct{}](err).
type Server interface {
	Dispatch(ctx context.Context, interfaceID uint64, methodID uint16, cc *CallContext) *loop.Future[struct{}]
}

// NewLocalClient returns a Hook that dispatches every call against server
// on l, scheduled via l.Defer so dispatch is never synchronous with
// Call's caller (spec.md §4.5, §8 item 6).
func NewLocalClient(server Server, l *loop.Loop) Hook {
	return NewLocalClientWithBrand(server, l, Brand{})
}

// NewLocalClientWithBrand is like NewLocalClient but attaches brand,
// letting a collaborator that created server recognize it again later
// through GetBrand (for example to detect a capability round-tripping
// back to its own process without forwarding calls through dispatch).
func NewLocalClientWithBrand(server Server, l *loop.Loop, brand Brand) Hook {
	lc := &localClient{server: server, loop: l, brand: brand}
	lc.refs.Store(1)
	rootMetrics.hooksCreated.Add(1)
	return lc
}

type localClient struct {
	server Server
	loop   *loop.Loop
	brand  Brand
	refs   atomic.Int32
}

func (lc *localClient) NewCall(interfaceID uint64, methodID uint16, sizeHint int) *Request {
	return &Request{InterfaceID: interfaceID, MethodID: methodID, Params: NewArena(sizeHint), target: lc}
}

// Call schedules a dispatch on lc.loop and returns immediately with a
// completion future and a pipeline. The pipeline is an exclusive join
// between whatever tail call Dispatch starts (via cc.OnTailCall) and the
// ordinary results pipeline built once Dispatch returns without one;
// whichever resolves first wins, matching spec.md §4.5's description of
// LocalClient::call.
func (lc *localClient) Call(ctx context.Context, interfaceID uint64, methodID uint16, cc *CallContext) (*loop.Future[struct{}], Pipeline) {
	completion, completionFulfiller := loop.NewFuture[struct{}]()
	ownPipeline, ownPipelineFulfiller := loop.NewFuture[Pipeline]()

	lc.loop.Defer(func() {
		dispatchDone := lc.server.Dispatch(ctx, interfaceID, methodID, cc)
		// Wait for dispatchDone off the loop goroutine: dispatchDone may
		// itself depend on further work scheduled on this same loop (a tail
		// call dispatches on another turn), and blocking the loop's one
		// goroutine here would deadlock that work forever.
		go func() {
			_, err := dispatchDone.MustWait()
			if err != nil {
				completionFulfiller.Reject(err)
				ownPipelineFulfiller.Reject(err)
				return
			}
			// If Dispatch tail-called, cc.OnTailCall() resolved while
			// Dispatch was still running and will win the exclusive join
			// below regardless of what we fulfill here; it is always safe
			// to force result allocation at this point because TailCall
			// rejects once cc.response is already set, and dispatchDone
			// has now resolved.
			ownPipelineFulfiller.Fulfill(newLocalPipeline(cc))
			completionFulfiller.Fulfill(struct{}{})
		}()
	})

	pipelineFuture := loop.ExclusiveJoin(cc.OnTailCall(), ownPipeline)
	return completion, newQueuedPipeline(pipelineFuture)
}

func (lc *localClient) GetResolved() (Hook, bool) { return lc, true }

func (lc *localClient) WhenMoreResolved() (*loop.Future[Hook], bool) { return nil, false }

func (lc *localClient) GetBrand() Brand { return lc.brand }

func (lc *localClient) AddRef() Hook {
	lc.refs.Add(1)
	return lc
}

func (lc *localClient) Release() {
	if lc.refs.Add(-1) == 0 {
		rootMetrics.hooksReleased.Add(1)
		if closer, ok := lc.server.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
}
