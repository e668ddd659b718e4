// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

import "sync"

// An Arena is a scratch area for a single request or response payload. It
// plays the role of the message builder spec.md §2 treats as an external
// collaborator: wire serialization is out of scope for this module, so an
// Arena holds one opaque root value rather than an encoded byte buffer.
// An Arena is single-writer: the writer is the request's sender before
// Send, or the server between its first call to GetResults and its
// return, matching spec.md §5's shared-resource policy.
type Arena struct {
	mu   sync.Mutex
	root any
}

// NewArena returns an empty Arena. sizeHint is accepted for parity with
// the sizing hints real message builders take, but an opaque root value
// has no meaningful size to preallocate.
func NewArena(sizeHint int) *Arena { return &Arena{} }

// SetRoot stores v as the arena's root value.
func (a *Arena) SetRoot(v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.root = v
}

// Root returns the arena's current root value.
func (a *Arena) Root() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.root
}

// Ptr is an immutable snapshot of an Arena's root value, handed to readers
// of a request's params or a response's results.
type Ptr struct {
	root any
}

// NewPtr wraps v as a Ptr.
func NewPtr(v any) Ptr { return Ptr{root: v} }

// Root returns the underlying value.
func (p Ptr) Root() any { return p.root }

// A PipelineOp names one step along the pointer path inside a
// not-yet-arrived result: "take the capability-bearing field at this
// index". The real path grammar (struct vs. list indices, and so on) is
// defined by the surrounding schema framework and is out of scope here;
// PipelineOp models only the one shape spec.md's getPipelinedCap needs.
type PipelineOp struct {
	Field uint16
}

// clonePipelineOps returns an independent copy of ops. Queued pipelines must copy an
// incoming op-slice before deferring it, per spec.md §3's ownership rule
// for PipelineOp arrays.
func clonePipelineOps(ops []PipelineOp) []PipelineOp {
	return append([]PipelineOp(nil), ops...)
}

// A PointerContainer is implemented by root values that expose
// capability-bearing fields reachable along a PipelineOp path. A result
// value that does not implement this interface has no pipelined fields.
type PointerContainer interface {
	Field(i uint16) any
}

// walkPipelinedCap walks ops from root and returns the Hook found at the
// end of the path, or a broken hook describing why the path could not be
// followed.
func walkPipelinedCap(root any, ops []PipelineOp) Hook {
	v := root
	for _, op := range ops {
		pc, ok := v.(PointerContainer)
		if !ok {
			return NewBrokenHook(usageErrorf("getPipelinedCap",
				"value of type %T has no pointer fields", v))
		}
		v = pc.Field(op.Field)
	}
	h, ok := v.(Hook)
	if !ok {
		return NewBrokenHook(usageErrorf("getPipelinedCap",
			"value at path is not a capability (got %T)", v))
	}
	return h
}
