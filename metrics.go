// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

import "expvar"

// callMetrics record call and capability lifecycle counters, the way the
// teacher's peerMetrics record packet and call activity for a chirp.Peer.
type callMetrics struct {
	callsIssued    expvar.Int // outbound calls sent via Request.Send
	callsCompleted expvar.Int
	callsFailed    expvar.Int
	callsCanceled  expvar.Int // calls whose context ended before completion
	hooksCreated   expvar.Int // local and queued hooks constructed
	hooksReleased  expvar.Int // hooks whose last reference was released

	emap *expvar.Map
}

// rootMetrics is shared by every call and hook in the process, mirroring
// the teacher's package-level rootMetrics default.
var rootMetrics = newCallMetrics()

func newCallMetrics() *callMetrics {
	m := &callMetrics{emap: new(expvar.Map)}
	m.emap.Set("calls_issued", &m.callsIssued)
	m.emap.Set("calls_completed", &m.callsCompleted)
	m.emap.Set("calls_failed", &m.callsFailed)
	m.emap.Set("calls_canceled", &m.callsCanceled)
	m.emap.Set("hooks_created", &m.hooksCreated)
	m.emap.Set("hooks_released", &m.hooksReleased)
	return m
}

// Metrics returns the expvar map tracking call and capability activity for
// this process.
func Metrics() *expvar.Map { return rootMetrics.emap }
