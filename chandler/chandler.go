// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package chandler provides adapters from typed Go functions to the
// registry.Impl signature, the way the teacher's handler package adapts
// typed functions to chirp.Handler.
//
// Unlike handler, there is no wire encoding to invert here: parameters and
// results travel as the opaque root value of a cap.Arena, so the adapters
// in this package type-assert the root value directly instead of
// unmarshaling bytes.
package chandler

import (
	"context"
	"fmt"

	cap "github.com/creachadair/capflow"
	"github.com/creachadair/capflow/registry"
)

// ccContextKey is a context key for the call context passed to a handler.
type ccContextKey struct{}

// ContextCallContext returns the CallContext active for the handler
// currently executing in ctx, or nil if ctx has none. The context passed to
// a handler adapted by this package always carries this value.
func ContextCallContext(ctx context.Context) *cap.CallContext {
	if v := ctx.Value(ccContextKey{}); v != nil {
		return v.(*cap.CallContext)
	}
	return nil
}

// ParamResultError adapts a function f that accepts parameters of type P
// and returns a result of type R and an error, to a registry.Impl.
func ParamResultError[P, R any](f func(context.Context, P) (R, error)) registry.Impl {
	return func(ctx context.Context, cc *cap.CallContext) error {
		p, err := paramsOf[P](cc)
		if err != nil {
			return err
		}
		hctx := context.WithValue(ctx, ccContextKey{}, cc)
		r, err := f(hctx, p)
		if err != nil {
			return err
		}
		return setResults(cc, r)
	}
}

// ParamResult adapts a function f that accepts parameters of type P and
// returns a result of type R without error, to a registry.Impl.
func ParamResult[P, R any](f func(context.Context, P) R) registry.Impl {
	return func(ctx context.Context, cc *cap.CallContext) error {
		p, err := paramsOf[P](cc)
		if err != nil {
			return err
		}
		hctx := context.WithValue(ctx, ccContextKey{}, cc)
		return setResults(cc, f(hctx, p))
	}
}

// ParamError adapts a function f that accepts parameters of type P and
// returns only an error, to a registry.Impl.
func ParamError[P any](f func(context.Context, P) error) registry.Impl {
	return func(ctx context.Context, cc *cap.CallContext) error {
		p, err := paramsOf[P](cc)
		if err != nil {
			return err
		}
		hctx := context.WithValue(ctx, ccContextKey{}, cc)
		return f(hctx, p)
	}
}

// ResultError adapts a function f that accepts no parameters and returns a
// result of type R and an error, to a registry.Impl.
func ResultError[R any](f func(context.Context) (R, error)) registry.Impl {
	return func(ctx context.Context, cc *cap.CallContext) error {
		cc.ReleaseParams()
		hctx := context.WithValue(ctx, ccContextKey{}, cc)
		r, err := f(hctx)
		if err != nil {
			return err
		}
		return setResults(cc, r)
	}
}

func paramsOf[P any](cc *cap.CallContext) (P, error) {
	var zero P
	params, err := cc.GetParams()
	if err != nil {
		return zero, err
	}
	p, ok := params.Root().(P)
	if !ok {
		return zero, fmt.Errorf("chandler: params: got %T, want %T", params.Root(), zero)
	}
	cc.ReleaseParams()
	return p, nil
}

func setResults[R any](cc *cap.CallContext, r R) error {
	arena, err := cc.GetResults(0)
	if err != nil {
		return err
	}
	arena.SetRoot(r)
	return nil
}
