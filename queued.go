// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/creachadair/capflow/loop"
)

// NewQueuedClient returns a Hook that buffers calls while waiting for
// hookFuture to resolve, then forwards them to the resolved hook in
// submission order. This is the local-core equivalent of a promise for a
// capability whose identity is not yet known.
func NewQueuedClient(hookFuture *loop.Future[Hook]) Hook {
	return newQueuedClient(hookFuture)
}

// queuedClient buffers calls while waiting for a Hook to forward them to.
//
// Ordering is the entire point of this type (spec.md §4.4, §8 item 5): all
// calls queued before resolution must be forwarded, in submission order,
// strictly before any whenMoreResolved observer's continuation runs, and
// their completions must arrive strictly after. Rather than rely on
// promise-fork registration order the way the system this is modeled on
// does, this does it with plain sequential code: resolve() first drains
// pendingForward (in slice order, i.e. submission order) and only then
// fulfills clientResFuture, which is what whenMoreResolved observers wait
// on. The "completions arrive after" half of the guarantee falls out for
// free because forwarded calls against a local hook always cross at
// least one turn of the shared loop (localClient.Call defers dispatch),
// so a forwarded call's completion cannot itself resolve until after
// resolve() has already returned control to that same goroutine.
type queuedClient struct {
	mu         sync.Mutex
	resolved   bool
	redirect   Hook
	resolveErr error
	pending    []func()

	clientResFuture    *loop.Future[Hook]
	clientResFulfiller *loop.Fulfiller[Hook]

	refs atomic.Int32
}

func newQueuedClient(hookFuture *loop.Future[Hook]) *queuedClient {
	qc := &queuedClient{}
	qc.clientResFuture, qc.clientResFulfiller = loop.NewFuture[Hook]()
	qc.refs.Store(1)
	rootMetrics.hooksCreated.Add(1)
	go func() {
		h, err := hookFuture.MustWait()
		qc.resolve(h, err)
	}()
	return qc
}

func (qc *queuedClient) resolve(h Hook, err error) {
	qc.mu.Lock()
	qc.resolved = true
	qc.redirect = h
	qc.resolveErr = err
	pending := qc.pending
	qc.pending = nil
	qc.mu.Unlock()

	for _, fwd := range pending {
		fwd()
	}

	if err != nil {
		qc.clientResFulfiller.Reject(err)
	} else {
		qc.clientResFulfiller.Fulfill(h)
	}
}

type queuedCallResult struct {
	completion *loop.Future[struct{}]
	pipeline   Pipeline
}

func (qc *queuedClient) NewCall(interfaceID uint64, methodID uint16, sizeHint int) *Request {
	return &Request{InterfaceID: interfaceID, MethodID: methodID, Params: NewArena(sizeHint), target: qc}
}

func (qc *queuedClient) Call(ctx context.Context, interfaceID uint64, methodID uint16, cc *CallContext) (*loop.Future[struct{}], Pipeline) {
	resultFuture, resultFulfiller := loop.NewFuture[queuedCallResult]()

	forward := func() {
		qc.mu.Lock()
		h, err := qc.redirect, qc.resolveErr
		qc.mu.Unlock()
		if err != nil {
			resultFulfiller.Reject(err)
			return
		}
		completion, pipeline := h.Call(ctx, interfaceID, methodID, cc)
		resultFulfiller.Fulfill(queuedCallResult{completion: completion, pipeline: pipeline})
	}

	qc.mu.Lock()
	if qc.resolved {
		qc.mu.Unlock()
		forward()
	} else {
		qc.pending = append(qc.pending, forward)
		qc.mu.Unlock()
	}

	pipelineFuture := loop.Map(resultFuture, func(r queuedCallResult) (Pipeline, error) {
		return r.pipeline, nil
	})
	completionFuture := loop.Then(resultFuture, func(r queuedCallResult, err error) (struct{}, error) {
		if err != nil {
			return struct{}{}, err
		}
		return r.completion.MustWait()
	})
	return completionFuture, newQueuedPipeline(pipelineFuture)
}

func (qc *queuedClient) GetResolved() (Hook, bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	if qc.resolved && qc.resolveErr == nil {
		return qc.redirect, true
	}
	return nil, false
}

func (qc *queuedClient) WhenMoreResolved() (*loop.Future[Hook], bool) {
	return qc.clientResFuture, true
}

func (qc *queuedClient) GetBrand() Brand { return Brand{} }

func (qc *queuedClient) AddRef() Hook {
	qc.refs.Add(1)
	return qc
}

func (qc *queuedClient) Release() {
	if qc.refs.Add(-1) == 0 {
		rootMetrics.hooksReleased.Add(1)
		qc.mu.Lock()
		r := qc.redirect
		qc.mu.Unlock()
		if r != nil {
			r.Release()
		}
	}
}

// queuedPipeline buffers GetPipelinedCap calls while waiting for a
// Pipeline to forward them to (spec.md §4.4).
type queuedPipeline struct {
	future *loop.Future[Pipeline]

	mu       sync.Mutex
	redirect Pipeline
}

func newQueuedPipeline(future *loop.Future[Pipeline]) *queuedPipeline {
	qp := &queuedPipeline{future: future}
	go func() {
		p, err := future.MustWait()
		if err == nil {
			qp.mu.Lock()
			qp.redirect = p
			qp.mu.Unlock()
		}
	}()
	return qp
}

func (qp *queuedPipeline) GetPipelinedCap(ops []PipelineOp) Hook {
	qp.mu.Lock()
	r := qp.redirect
	qp.mu.Unlock()
	if r != nil {
		return r.GetPipelinedCap(ops)
	}

	opsCopy := clonePipelineOps(ops)
	hookFuture := loop.Then(qp.future, func(p Pipeline, err error) (Hook, error) {
		if err != nil {
			return nil, err
		}
		return p.GetPipelinedCap(opsCopy), nil
	})
	return newQueuedClient(hookFuture)
}
