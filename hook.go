// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package cap implements the in-process core of an object-capability RPC
// system: capability hooks, the local call context, queued capabilities
// and pipelines, and the local dispatch path. See doc.go for an overview.
package cap

import (
	"context"

	"github.com/creachadair/capflow/loop"
)

// A Brand is an opaque identity token a Hook may expose through GetBrand
// so that a specific collaborator (for example a transport layer) can
// recognize hooks it created itself. The zero Brand is the "anonymous"
// brand: no collaborator should ever claim it as their own.
type Brand struct{ owner any }

// NewBrand wraps owner as a Brand. Two Brands compare equal exactly when
// their owner values compare equal, so owner must be comparable (a
// pointer is the usual choice).
func NewBrand(owner any) Brand { return Brand{owner: owner} }

// IsAnonymous reports whether b is the zero Brand.
func (b Brand) IsAnonymous() bool { return b.owner == nil }

// Owner returns the value NewBrand was given, or nil for the zero Brand.
func (b Brand) Owner() any { return b.owner }

// A Hook is a polymorphic reference to a callable capability. The three
// variants implemented by this package are a local hook wrapping a Server,
// a queued hook buffering calls against a capability that has not yet
// resolved, and a broken hook that fails every call with a fixed error.
// An external RPC layer is expected to supply a fourth, remote variant
// obeying the same contract (out of scope here).
type Hook interface {
	// NewCall allocates a fresh outbound Request whose Send will route
	// through this hook. sizeHint is advisory and may be 0.
	NewCall(interfaceID uint64, methodID uint16, sizeHint int) *Request

	// Call issues a call against this hook using the given call context
	// and returns a void completion future together with a pipeline for
	// the not-yet-arrived result.
	Call(ctx context.Context, interfaceID uint64, methodID uint16, cc *CallContext) (*loop.Future[struct{}], Pipeline)

	// GetResolved returns the concrete hook this one has resolved to, if
	// resolution has already landed in this step; ok is false if further
	// resolution may yet occur.
	GetResolved() (hook Hook, ok bool)

	// WhenMoreResolved returns a future delivering the next-resolution
	// hook, if this hook is a promise; ok is false for a hook that cannot
	// resolve any further (chaining WhenMoreResolved to a fixpoint yields
	// a fully resolved hook).
	WhenMoreResolved() (fut *loop.Future[Hook], ok bool)

	// GetBrand returns this hook's identity token, or the zero Brand if
	// it is anonymous. The brand is stable for the lifetime of the hook.
	GetBrand() Brand

	// AddRef returns a new reference to the same underlying capability,
	// incrementing its share count.
	AddRef() Hook

	// Release drops one reference to the capability. The underlying
	// resource is torn down when the last reference is released.
	Release()
}

// WhenResolved returns a future that completes once h will resolve no
// further. For an already-resolved hook this completes immediately; for a
// promise hook it is the transitive closure of WhenMoreResolved. For a
// broken hook, or a promise that resolves to one, it fails with the broken
// hook's error. This is
// implemented as a free function, rather than a method every hook variant
// must reimplement, the way the teacher exposes ContextPeer/ContextRequest
// as package-level helpers built on the Peer/Request types instead of
// duplicating them per caller.
func WhenResolved(h Hook) *loop.Future[struct{}] {
	if b, ok := h.(brokenHook); ok {
		return loop.Failed[struct{}](b.err)
	}
	more, ok := h.WhenMoreResolved()
	if !ok {
		return loop.Resolved(struct{}{})
	}
	return loop.Then(more, func(next Hook, err error) (struct{}, error) {
		if err != nil {
			return struct{}{}, err
		}
		return WhenResolved(next).MustWait()
	})
}
