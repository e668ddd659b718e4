// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package loop provides the cooperative single-goroutine scheduler and
// one-shot future/fulfiller primitives that the cap package builds on.
//
// A Loop plays the role that an external event loop plays in the system
// this package is modeled on: exactly one goroutine drains a FIFO queue of
// deferred callbacks, so that "the next turn" has an unambiguous meaning
// and calls that cross a turn boundary observe a total order. Nothing in
// this package requires exclusive use of an OS thread; the discipline is
// enforced by routing all loop-owned work through the queue, the same way
// a chirp.Peer's receive goroutine is the only place inbound packets are
// dispatched from.
package loop

import "github.com/creachadair/taskgroup"

// A Loop is a cooperative scheduler: a single goroutine executes callbacks
// handed to Defer, strictly in the order they were submitted. A zero Loop
// is not ready for use; call New.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

// New starts a new Loop with the given task queue capacity. A capacity of
// 0 is legal and makes Defer block until the worker is ready to accept the
// next task, which is fine for tests but adds needless coupling between
// producer and consumer in general use; callers that expect bursts of
// deferred work should size the queue accordingly.
func New(queueSize int) *Loop {
	if queueSize < 0 {
		queueSize = 0
	}
	l := &Loop{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for fn := range l.tasks {
		fn()
	}
}

// Defer schedules fn to run on a future turn of the loop. Defer never runs
// fn synchronously, even if the loop is otherwise idle: this is what gives
// callers a turn boundary to depend on. The worker does not start fn until
// Defer has finished handing it over, even when the queue is unbuffered.
// Defer panics if called after Close.
func (l *Loop) Defer(fn func()) {
	gate := make(chan struct{})
	l.tasks <- func() { <-gate; fn() }
	close(gate)
}

// Close stops accepting new deferred work and blocks until all work
// already queued has finished executing. After Close returns, further
// calls to Defer will panic.
func (l *Loop) Close() {
	close(l.tasks)
	<-l.done
}

// Daemons drives each function handed to Go to completion on a fresh
// goroutine, detached from any caller's lifetime. It is for background
// bookkeeping that has
// no result the caller waits for; the taskgroup.Group backing it exists
// only to give tests a way to drain outstanding daemonized work via Wait,
// matching how the teacher's Peer drains its background tasks before
// reporting Wait's result.
type Daemons struct {
	g *taskgroup.Group
}

// NewDaemons returns a Daemons group. onError, if non-nil, is invoked
// (from the daemonized goroutine) for every error a daemonized function
// returns; a nil onError silently discards the error, matching spec.md
// §7's requirement that daemon branches swallow errors once nobody is
// listening.
func NewDaemons(onError func(error)) *Daemons {
	if onError == nil {
		onError = func(error) {}
	}
	return &Daemons{g: taskgroup.New(taskgroup.Listen(onError))}
}

// Go daemonizes fn: it runs on its own goroutine and its error, if any, is
// reported to the Daemons group's error sink rather than to any caller.
func (d *Daemons) Go(fn func() error) { d.g.Go(fn) }

// Wait blocks until all daemonized work started so far has completed. It
// exists for tests that need to observe the "server still runs to
// completion" invariant deterministically instead of via a sleep.
func (d *Daemons) Wait() { d.g.Wait() }
