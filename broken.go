// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

import (
	"context"

	"github.com/creachadair/capflow/loop"
)

// brokenHook is a terminal Hook whose every operation fails with a fixed
// error. It is its own resolution: GetResolved always returns itself, and
// WhenMoreResolved always reports that no further resolution can occur.
type brokenHook struct {
	err error
}

// NewBrokenHook returns a Hook that fails every call with err.
func NewBrokenHook(err error) Hook { return brokenHook{err: err} }

// NewBrokenHookMessage returns a Hook that fails every call with an error
// built from msg, matching the common case of constructing a broken
// capability from a plain description rather than a precomputed error.
func NewBrokenHookMessage(msg string) Hook { return NewBrokenHook(&BrokenError{Msg: msg}) }

func (b brokenHook) NewCall(interfaceID uint64, methodID uint16, sizeHint int) *Request {
	return &Request{InterfaceID: interfaceID, MethodID: methodID, Params: NewArena(sizeHint), target: b}
}

func (b brokenHook) Call(ctx context.Context, interfaceID uint64, methodID uint16, cc *CallContext) (*loop.Future[struct{}], Pipeline) {
	return loop.Failed[struct{}](b.err), brokenPipeline{err: b.err}
}

func (b brokenHook) GetResolved() (Hook, bool)                   { return b, true }
func (b brokenHook) WhenMoreResolved() (*loop.Future[Hook], bool) { return nil, false }
func (b brokenHook) GetBrand() Brand                              { return Brand{} }
func (b brokenHook) AddRef() Hook                                 { return b }
func (b brokenHook) Release()                                     {}

// brokenPipeline is the Pipeline counterpart of brokenHook: every
// pipelined capability it yields is itself broken with the same error.
type brokenPipeline struct{ err error }

func (p brokenPipeline) GetPipelinedCap(ops []PipelineOp) Hook { return NewBrokenHook(p.err) }
