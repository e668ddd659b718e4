// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

import (
	"context"

	"github.com/creachadair/capflow/loop"
)

// A Response is an immutable reader over a response message, owning the
// backing arena. Exactly one Response is created per successful call.
type Response struct {
	arena *Arena
}

// Results returns a reader over the response's root value.
func (r *Response) Results() Ptr { return NewPtr(r.arena.Root()) }

// A Request is an unsent call: an interface/method pair, a params
// builder, and the hook it will be sent through. There is a single
// concrete Request type in this local core — every Hook variant's NewCall
// constructs one, only the target hook differs — matching spec.md §4.1's
// description of a single RequestHook implementation shared by the local
// and queued clients.
type Request struct {
	InterfaceID uint64
	MethodID    uint16
	Params      *Arena

	target Hook
	sent   bool
}

// Send implements spec.md §4.3: it allocates cancellation plumbing,
// builds a shared call context, invokes the target hook's Call, and forks
// the completion into a daemon branch (kept alive until the server opts
// into cancellation, or the call finishes on its own) and a return branch
// that force-allocates a response so a reply exists even for void
// methods.
//
// ctx stands in for "the client drops interest": if ctx ends before the
// call completes, the call context's cancelRequested flag is set, exactly
// as the teacher's Peer.Call treats its context's Done channel as the
// signal to push a cancellation (see peer.go's watchdog select loop).
func (r *Request) Send(ctx context.Context) (*loop.Future[*Response], Pipeline) {
	if r.sent {
		return loop.Failed[*Response](ErrAlreadySent), brokenPipeline{err: ErrAlreadySent}
	}
	r.sent = true
	rootMetrics.callsIssued.Add(1)

	cancelAllowed, cancelAllowedSetUp := loop.NewFuture[struct{}]()
	cc := newCallContext(r.Params, r.target.AddRef(), cancelAllowed, cancelAllowedSetUp)

	completion, pipeline := r.target.Call(ctx, r.InterfaceID, r.MethodID, cc)

	// Daemon branch: keep the call alive past the point the client-side
	// future is abandoned, until either it finishes on its own or the
	// server opts into cancellation. Attach a context ref so the context
	// is not torn down while this races.
	ccRef := cc.AddRef()
	daemonBranch := loop.Attach(
		loop.ExclusiveJoin(completion, cancelAllowed),
		ccRef.Release,
	)
	daemons.Go(func() error {
		_, err := daemonBranch.MustWait()
		return err
	})

	// Return branch: once the call completes, force response allocation
	// so a reply exists even for void methods, then yield it.
	returnBranch := loop.Then(completion, func(_ struct{}, err error) (*Response, error) {
		if err != nil {
			rootMetrics.callsFailed.Add(1)
			return nil, err
		}
		cc.GetResults(1) // force allocation
		resp := cc.response_()
		rootMetrics.callsCompleted.Add(1)
		return resp, nil
	})
	returnBranch = loop.Attach(returnBranch, func() { cc.Release() })

	// Watch ctx for the client dropping interest, and mark the context
	// canceled if it ends before the call completes.
	go func() {
		select {
		case <-ctx.Done():
			cc.markCanceled()
		case <-completion.Done():
		}
	}()

	return returnBranch, pipeline
}
