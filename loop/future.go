package loop

import (
	"context"
	"sync"
)

// A Future is a one-shot value that becomes available exactly once, either
// with a value or with an error. The zero Future is not useful; construct
// one with NewFuture.
//
// A Future may be waited on by any number of goroutines concurrently: the
// underlying channel is closed exactly once, and a closed channel already
// broadcasts to every receiver, so no separate "fork" step is needed the
// way it is for the promise type this package stands in for. Derived
// futures built with Then, Attach, or ExclusiveJoin are simply additional
// independent readers of the same completion signal.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// A Fulfiller resolves the Future it was created alongside. Fulfill and
// Reject are safe to call from any goroutine; only the first call has any
// effect, matching the one-shot contract of spec.md's Fulfiller type.
type Fulfiller[T any] struct {
	once sync.Once
	f    *Future[T]
}

// NewFuture returns a Future and the Fulfiller that resolves it.
func NewFuture[T any]() (*Future[T], *Fulfiller[T]) {
	f := &Future[T]{done: make(chan struct{})}
	return f, &Fulfiller[T]{f: f}
}

// Resolved returns a Future that is already complete with v.
func Resolved[T any](v T) *Future[T] {
	f, ff := NewFuture[T]()
	ff.Fulfill(v)
	return f
}

// Failed returns a Future that is already complete with err.
func Failed[T any](err error) *Future[T] {
	f, ff := NewFuture[T]()
	ff.Reject(err)
	return f
}

// Fulfill resolves the future with v. Only the first of Fulfill/Reject
// takes effect.
func (ff *Fulfiller[T]) Fulfill(v T) {
	ff.once.Do(func() {
		ff.f.val = v
		close(ff.f.done)
	})
}

// Reject resolves the future with err. Only the first of Fulfill/Reject
// takes effect.
func (ff *Fulfiller[T]) Reject(err error) {
	ff.once.Do(func() {
		ff.f.err = err
		close(ff.f.done)
	})
}

// Done returns a channel that is closed once f has resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Peek reports whether f has already resolved, and if so its value and
// error. It never blocks.
func (f *Future[T]) Peek() (v T, err error, ready bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Wait blocks until f resolves or ctx ends, whichever comes first.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// MustWait blocks uninterruptibly until f resolves. It is for callers that
// drive a future to completion with no context to bound the wait, such as
// the continuation goroutines of this package and of the cap package.
func (f *Future[T]) MustWait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Then chains a continuation onto f: it runs fn once f resolves (on a new
// goroutine, so Then never blocks the caller) and resolves the returned
// future with fn's result. This is the Go replacement for the external
// Promise type's then/fork combination: each call to Then produces an
// independent branch of f, since f's Done channel may be read any number
// of times.
func Then[T, U any](f *Future[T], fn func(T, error) (U, error)) *Future[U] {
	out, full := NewFuture[U]()
	go func() {
		v, err := f.MustWait()
		r, err2 := fn(v, err)
		if err2 != nil {
			full.Reject(err2)
		} else {
			full.Fulfill(r)
		}
	}()
	return out
}

// Map is Then specialized to the common case of transforming a successful
// value and passing errors through unchanged.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return Then(f, func(v T, err error) (U, error) {
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
}

// ExclusiveJoin returns a future that resolves with whichever of a, b
// resolves first; the other is left to resolve on its own but its result
// is discarded. This mirrors the exclusiveJoin primitive spec.md requires
// of the external Promise type, used to race the cancel-allowed signal
// against a call's completion.
func ExclusiveJoin[T any](a, b *Future[T]) *Future[T] {
	out, full := NewFuture[T]()
	go func() {
		select {
		case <-a.done:
			deliver(full, a.val, a.err)
		case <-b.done:
			deliver(full, b.val, b.err)
		}
	}()
	return out
}

func deliver[T any](full *Fulfiller[T], v T, err error) {
	if err != nil {
		full.Reject(err)
	} else {
		full.Fulfill(v)
	}
}

// Attach returns a future that resolves exactly as f does, but only after
// running every release function in closers, in order. It is the
// replacement for the external Promise type's attach(obj): tying an
// owned resource's release to a future's resolution so that ownership
// transfers correctly whether the future succeeds, fails, or is abandoned
// by every other reader (closers still run, because Attach itself holds a
// reader of f.Done).
func Attach[T any](f *Future[T], closers ...func()) *Future[T] {
	out, full := NewFuture[T]()
	go func() {
		v, err := f.MustWait()
		for _, c := range closers {
			c()
		}
		deliver(full, v, err)
	}()
	return out
}
