// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package cap_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/fortytw2/leaktest"

	cap "github.com/creachadair/capflow"
	"github.com/creachadair/capflow/captest"
	"github.com/creachadair/capflow/loop"
)

// recursiveTailServer tail-calls itself twice, then answers directly with
// payload "Y".
type recursiveTailServer struct {
	self  cap.Hook
	calls atomic.Int32
}

func (s *recursiveTailServer) Dispatch(ctx context.Context, interfaceID uint64, methodID uint16, cc *cap.CallContext) *loop.Future[struct{}] {
	cc.ReleaseParams()
	n := s.calls.Add(1)
	if n <= 2 {
		req := s.self.NewCall(interfaceID, methodID, 0)
		req.Params.SetRoot(fmt.Sprintf("tail-%d", n))
		completion, err := cc.TailCall(req)
		if err != nil {
			return loop.Failed[struct{}](err)
		}
		return completion
	}
	arena, err := cc.GetResults(0)
	if err != nil {
		return loop.Failed[struct{}](err)
	}
	arena.SetRoot("Y")
	return loop.Resolved(struct{}{})
}

func TestRecursiveTailCall(t *testing.T) {
	defer leaktest.Check(t)()

	h := captest.New()
	defer h.Stop()

	srv := &recursiveTailServer{}
	hook := h.NewClient(srv)
	srv.self = hook
	defer hook.Release()

	req := hook.NewCall(1, 1, 0)
	req.Params.SetRoot("tail-0")
	resp, pipeline := req.Send(context.Background())
	if pipeline == nil {
		t.Fatal("Send returned a nil pipeline")
	}

	r, err := resp.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := r.Results().Root(); got != "Y" {
		t.Errorf("Results().Root() = %v, want %q", got, "Y")
	}
	if n := srv.calls.Load(); n != 3 {
		t.Errorf("Dispatch ran %d times, want 3", n)
	}
}

// doubleTailServer attempts a second tail call after the first has already
// started, which spec.md §9 resolves as a usage error; the outer call
// should still complete via the first tail call.
type doubleTailServer struct {
	target    cap.Hook
	secondErr error
}

func (s *doubleTailServer) Dispatch(ctx context.Context, interfaceID uint64, methodID uint16, cc *cap.CallContext) *loop.Future[struct{}] {
	cc.ReleaseParams()

	req1 := s.target.NewCall(0x1111, 3, 0)
	req1.Params.SetRoot("first")
	completion, err := cc.TailCall(req1)
	if err != nil {
		return loop.Failed[struct{}](err)
	}

	req2 := s.target.NewCall(0x1111, 3, 0)
	req2.Params.SetRoot("second")
	_, s.secondErr = cc.TailCall(req2)

	return completion
}

func TestSecondTailCallRejected(t *testing.T) {
	defer leaktest.Check(t)()

	h := captest.New()
	defer h.Stop()

	target := h.NewClient(echoServer{})
	defer target.Release()

	srv := &doubleTailServer{target: target}
	hook := h.NewClient(srv)
	defer hook.Release()

	req := hook.NewCall(1, 1, 0)
	resp, _ := req.Send(context.Background())
	r, err := resp.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := r.Results().Root(); got != "first" {
		t.Errorf("Results().Root() = %v, want %q", got, "first")
	}

	var ue *cap.UsageError
	if !errors.As(srv.secondErr, &ue) {
		t.Errorf("second TailCall error = %v, want *cap.UsageError", srv.secondErr)
	}
}
