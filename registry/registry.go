// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package registry assigns mnemonic names to (interfaceID, methodID) pairs
// and builds the method table a cap.Server dispatches against, the way the
// teacher's catalog package assigns mnemonic names to chirp method IDs.
// Unlike catalog, a Registry never leaves the process: there is no wire
// format in scope here, so Encode/Decode have no counterpart.
//
// # Usage
//
// Construct a registry scoped to one interface and add methods to it:
//
//	reg := registry.New(echoInterfaceID, "Echoer").Add("echo", "reverse")
//
// Recover an assigned ID with Lookup:
//
//	id := reg.Lookup("echo")
//
// Build a dispatch table bound to implementations:
//
//	table := reg.NewTable().
//		Handle("echo", echoImpl).
//		Handle("reverse", reverseImpl)
//
// table implements cap.Server and can be passed directly to
// cap.NewLocalClient.
package registry

import (
	"context"
	"fmt"

	cap "github.com/creachadair/capflow"
	"github.com/creachadair/capflow/loop"
)

// Impl is the signature every method handler bound into a Table with
// Handle satisfies. An Impl answers its call directly; it cannot tail-call,
// since its completion is always the table's own dispatch turn. A handler
// that needs to tail-call should be bound with HandleRaw instead.
type Impl func(ctx context.Context, cc *cap.CallContext) error

// RawImpl is the signature for a handler bound with HandleRaw: it returns
// its own completion future directly, the way a tail-calling handler needs
// to in order to satisfy spec.md §8 item 4 (a tail call's completion is the
// outer call's completion).
type RawImpl func(ctx context.Context, cc *cap.CallContext) *loop.Future[struct{}]

// A Registry maps mnemonic method names to method IDs scoped to a single
// interface ID and name.
type Registry struct {
	interfaceID   uint64
	interfaceName string
	methods       map[string]uint16
	used          map[uint16]bool
	cursor        uint16
}

// New creates an empty Registry scoped to interfaceID, labeled with
// interfaceName for use in UnimplementedError messages. interfaceName may
// be empty if the interface has no mnemonic name worth reporting.
func New(interfaceID uint64, interfaceName string) Registry {
	return Registry{
		interfaceID:   interfaceID,
		interfaceName: interfaceName,
		methods:       make(map[string]uint16),
		used:          make(map[uint16]bool),
	}
}

// InterfaceID returns the interface ID this registry is scoped to.
func (r Registry) InterfaceID() uint64 { return r.interfaceID }

// InterfaceName returns the mnemonic name this registry is labeled with.
func (r Registry) InterfaceName() string { return r.interfaceName }

// Add assigns each of names the next unclaimed method ID, walking a cursor
// forward from the last ID it handed out (or from zero, on a fresh
// Registry) and stepping over any ID a prior Set call already claimed.
// Repeating the same sequence of Add and Set calls against a fresh Registry
// always assigns the same IDs. Add returns r to permit chaining.
func (r Registry) Add(names ...string) Registry {
	for _, name := range names {
		r.cursor++
		for r.used[r.cursor] {
			r.cursor++
		}
		r.Set(name, r.cursor)
	}
	return r
}

// Set maps name to methodID, replacing any existing mapping, and returns r
// to permit chaining.
//
// The name mapping is shared among all copies of r; Set is not safe to call
// concurrently with other uses of r without external synchronization.
func (r Registry) Set(name string, methodID uint16) Registry {
	r.methods[name] = methodID
	r.used[methodID] = true
	return r
}

// Lookup returns the method ID assigned to name, or 0 if name is unknown.
func (r Registry) Lookup(name string) uint16 { return r.methods[name] }

// NewCall allocates a Request for name against hook, using this registry's
// interface ID and the method ID assigned to name.
func (r Registry) NewCall(hook cap.Hook, name string, sizeHint int) *cap.Request {
	return hook.NewCall(r.interfaceID, r.Lookup(name), sizeHint)
}

// NewTable returns an empty Table bound to r's name mapping.
func (r Registry) NewTable() *Table {
	return &Table{Registry: r, handlers: make(map[uint16]RawImpl)}
}

// A Table is a cap.Server built by binding method names from a Registry to
// Impl or RawImpl functions.
type Table struct {
	Registry
	handlers map[uint16]RawImpl
}

// Handle binds name to impl, and returns t to permit chaining. Handle
// panics if name was not registered with t's Registry.
func (t *Table) Handle(name string, impl Impl) *Table {
	return t.HandleRaw(name, func(ctx context.Context, cc *cap.CallContext) *loop.Future[struct{}] {
		if err := impl(ctx, cc); err != nil {
			return loop.Failed[struct{}](err)
		}
		return loop.Resolved(struct{}{})
	})
}

// HandleRaw binds name to impl, and returns t to permit chaining. Unlike
// Handle, impl returns its own completion future, so it may tail-call and
// hand back the tail call's completion directly. HandleRaw panics if name
// was not registered with t's Registry.
func (t *Table) HandleRaw(name string, impl RawImpl) *Table {
	methodID, ok := t.methods[name]
	if !ok {
		panic(fmt.Sprintf("registry: method %q not known", name))
	}
	t.handlers[methodID] = impl
	return t
}

// Dispatch implements cap.Server.
func (t *Table) Dispatch(ctx context.Context, interfaceID uint64, methodID uint16, cc *cap.CallContext) *loop.Future[struct{}] {
	if interfaceID != t.interfaceID {
		// t has no name on record for a foreign interface ID, so the error
		// falls back to the raw ID.
		return loop.Failed[struct{}](&cap.UnimplementedError{TypeID: interfaceID, MethodID: methodID})
	}
	impl, ok := t.handlers[methodID]
	if !ok {
		return loop.Failed[struct{}](&cap.UnimplementedError{
			InterfaceName: t.interfaceName,
			TypeID:        t.interfaceID,
			MethodID:      methodID,
		})
	}
	return impl(ctx, cc)
}
