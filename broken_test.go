// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap_test

import (
	"context"
	"strings"
	"testing"

	"github.com/fortytw2/leaktest"

	cap "github.com/creachadair/capflow"
)

// TestBrokenPropagation is scenario S6: every operation on a broken hook
// fails with the seeded message, and it reports no further resolution
// (spec.md §8 item 8).
func TestBrokenPropagation(t *testing.T) {
	defer leaktest.Check(t)()

	hook := cap.NewBrokenHookMessage("boom")

	req := hook.NewCall(1, 1, 0)
	resp, pipeline := req.Send(context.Background())

	_, err := resp.Wait(context.Background())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Send error = %v, want to contain %q", err, "boom")
	}

	sub := pipeline.GetPipelinedCap([]cap.PipelineOp{{Field: 0}})
	subReq := sub.NewCall(1, 1, 0)
	subResp, _ := subReq.Send(context.Background())
	if _, err := subResp.Wait(context.Background()); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("pipelined call error = %v, want to contain %q", err, "boom")
	}

	if _, err := cap.WhenResolved(hook).Wait(context.Background()); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("WhenResolved on a broken hook: %v, want to contain %q", err, "boom")
	}

	if _, ok := hook.WhenMoreResolved(); ok {
		t.Error("WhenMoreResolved on a broken hook: want absent, got present")
	}

	resolved, ok := hook.GetResolved()
	if !ok || resolved != hook {
		t.Error("GetResolved on a broken hook: want (itself, true)")
	}
}
