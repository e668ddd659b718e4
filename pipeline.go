// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap

// A Pipeline resolves sub-capabilities reachable in a not-yet-arrived
// response, via a sequence of PipelineOps. Pipelined calls made against
// the Hook returned by GetPipelinedCap chain to the underlying call's
// result; they never overtake it.
type Pipeline interface {
	// GetPipelinedCap returns a hook that, once this pipeline resolves,
	// behaves identically to the capability reachable at ops in the
	// result.
	GetPipelinedCap(ops []PipelineOp) Hook
}

// localPipeline is the Pipeline for a call dispatched through a
// localClient: it holds the call context and walks the result arena
// directly once the context's results are available.
type localPipeline struct {
	cc *CallContext
}

// newLocalPipeline forces the context's results to be allocated, matching
// spec.md §4.5's LocalPipeline constructor, which reads context.getResults
// eagerly. localClient.Call builds it only once Dispatch has completed, so
// pipelined calls queued before then wait for the server to return.
func newLocalPipeline(cc *CallContext) *localPipeline {
	cc.GetResults(1)
	return &localPipeline{cc: cc}
}

func (p *localPipeline) GetPipelinedCap(ops []PipelineOp) Hook {
	resp := p.cc.response_()
	if resp == nil {
		return NewBrokenHook(usageErrorf("GetPipelinedCap", "no results available yet"))
	}
	return walkPipelinedCap(resp.arena.Root(), ops)
}
