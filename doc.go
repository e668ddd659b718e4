// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package cap implements the in-process core of an object-capability RPC
// system: capability hooks, the local call context, queued capabilities and
// pipelines, and the local dispatch path.
//
// This is not a transport: there is no wire format, no schema compiler, and
// no network code here. What it provides is the machinery a transport layer
// builds on to give callers promise pipelining — the ability to chain a
// call onto the not-yet-arrived result of another call without waiting for
// a network round trip in between.
//
// # Hooks
//
// The core type is [Hook], a polymorphic reference to a callable
// capability. This package supplies three variants: a local hook backed by
// a [Server] ([NewLocalClient]), a queued hook that buffers calls against a
// capability that has not yet resolved ([NewQueuedClient]), and a broken
// hook that fails every call with a fixed error ([NewBrokenHook]). A fourth,
// remote variant obeying the same [Hook] contract is expected of an actual
// RPC layer, but is out of scope here.
//
// To issue a call against a hook:
//
//	req := hook.NewCall(interfaceID, methodID, sizeHint)
//	req.Params.SetRoot(myParams)
//	resp, pipeline := req.Send(ctx)
//
// Send returns immediately with a future for the response and a [Pipeline]
// for the not-yet-arrived result. Waiting for the response:
//
//	r, err := resp.Wait(ctx)
//	if err != nil {
//	    log.Fatalf("call failed: %v", err)
//	}
//	result := r.Results()
//
// # Pipelining
//
// Before resp resolves, a caller that knows a capability will be reachable
// at some field path in the result can call through the pipeline rather
// than waiting:
//
//	sub := pipeline.GetPipelinedCap([]cap.PipelineOp{{Field: 0}})
//	subResp, _ := sub.NewCall(otherInterfaceID, otherMethodID, 0).Send(ctx)
//
// The call to sub is queued until the original call resolves, then
// forwarded without the caller ever having to wait on the first response
// itself.
//
// # Servers
//
// A [Server] implements the method table a local hook dispatches against:
//
//	type echoServer struct{}
//
//	func (echoServer) Dispatch(ctx context.Context, interfaceID uint64, methodID uint16, cc *cap.CallContext) *loop.Future[struct{}] {
//	    params, err := cc.GetParams()
//	    if err != nil {
//	        return loop.Failed[struct{}](err)
//	    }
//	    arena, err := cc.GetResults(0)
//	    if err != nil {
//	        return loop.Failed[struct{}](err)
//	    }
//	    arena.SetRoot(params.Root())
//	    return loop.Resolved(struct{}{})
//	}
//
//	hook := cap.NewLocalClient(echoServer{}, myLoop)
//
// The registry and chandler packages provide higher-level adapters for
// building a [Server] out of named, typed Go functions instead of hand
// writing Dispatch.
//
// # Tail calls
//
// A server may forward an inbound call to another capability instead of
// answering it directly, using [CallContext.TailCall]. The original call's
// completion and pipeline become the tail-called request's completion and
// pipeline, so a chain of tail calls costs no more than a single hop from
// the original caller's perspective.
//
// # Cancellation
//
// A caller signals it has lost interest in a call by ending the context
// passed to [Request.Send]. A server that wants to observe cancellation
// explicitly, rather than simply being abandoned, calls
// [CallContext.AllowAsyncCancellation] after releasing the call's
// parameters, then polls [CallContext.IsCanceled].
//
// # Metrics
//
// Calls and capability hooks maintain a collection of metrics while the
// process runs. Use [Metrics] to obtain the [expvar.Map] they are exported
// through. The metrics currently exported include:
//
//   - calls_issued: counter of outbound calls sent
//   - calls_completed: counter of calls that completed successfully
//   - calls_failed: counter of calls that completed with an error
//   - calls_canceled: counter of calls whose context ended before completion
//   - hooks_created: counter of local and queued hooks constructed
//   - hooks_released: counter of hooks whose last reference was released
package cap
