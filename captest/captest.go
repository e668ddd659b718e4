// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package captest provides support code for exercising the local
// capability runtime in tests, the way the teacher's peers package gives
// tests a ready-made pair of connected chirp.Peer values.
//
// Since this module is purely in-process, there is no second peer to dial:
// the harness it provides is a shared loop.Loop to bind servers to, plus a
// Recorder for asserting the order calls actually land in, which is the
// property most of this package's test scenarios care about.
package captest

import (
	"sync"

	cap "github.com/creachadair/capflow"
	"github.com/creachadair/capflow/loop"
)

// Harness owns a loop.Loop sized for tests, so a test can build any number
// of local clients that share the same FIFO dispatch ordering.
type Harness struct {
	Loop *loop.Loop
}

// New returns a Harness with a freshly constructed loop.
func New() *Harness {
	return &Harness{Loop: loop.New(64)}
}

// Stop shuts down the harness's loop. Safe to call once per Harness.
func (h *Harness) Stop() { h.Loop.Close() }

// NewClient wraps server as a Hook dispatched on h's loop.
func (h *Harness) NewClient(server cap.Server) cap.Hook {
	return cap.NewLocalClient(server, h.Loop)
}

// A Recorder records the order in which named events occur across
// goroutines, for tests asserting call-delivery order (spec.md §8's
// ordering invariants).
type Recorder struct {
	mu    sync.Mutex
	order []string
}

// Record appends name to the recorded order.
func (r *Recorder) Record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

// Order returns a snapshot of the names recorded so far, in the order
// Record was called.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
