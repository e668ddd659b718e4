// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package chandler_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fortytw2/leaktest"

	"github.com/creachadair/capflow/captest"
	"github.com/creachadair/capflow/chandler"
	"github.com/creachadair/capflow/registry"
)

func TestParamResultError(t *testing.T) {
	defer leaktest.Check(t)()

	h := captest.New()
	defer h.Stop()

	reg := registry.New(0x3333, "Doubler").Add("double", "fail")
	table := reg.NewTable().
		Handle("double", chandler.ParamResultError(func(ctx context.Context, n int) (int, error) {
			if chandler.ContextCallContext(ctx) == nil {
				return 0, errors.New("no call context in handler")
			}
			return n * 2, nil
		})).
		Handle("fail", chandler.ParamError(func(ctx context.Context, n int) error {
			return fmt.Errorf("refused: %d", n)
		}))

	hook := h.NewClient(table)
	defer hook.Release()

	req := reg.NewCall(hook, "double", 0)
	req.Params.SetRoot(21)
	resp, _ := req.Send(context.Background())
	r, err := resp.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := r.Results().Root(); got != 42 {
		t.Errorf("Results().Root() = %v, want 42", got)
	}

	req2 := reg.NewCall(hook, "fail", 0)
	req2.Params.SetRoot(9)
	resp2, _ := req2.Send(context.Background())
	if _, err := resp2.Wait(context.Background()); err == nil {
		t.Error("Wait: want an error from a refusing handler, got nil")
	}
}

func TestResultError(t *testing.T) {
	defer leaktest.Check(t)()

	h := captest.New()
	defer h.Stop()

	reg := registry.New(0x4444, "Pinger").Add("ping")
	table := reg.NewTable().
		Handle("ping", chandler.ResultError(func(ctx context.Context) (string, error) {
			return "pong", nil
		}))

	hook := h.NewClient(table)
	defer hook.Release()

	req := reg.NewCall(hook, "ping", 0)
	resp, _ := req.Send(context.Background())
	r, err := resp.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := r.Results().Root(); got != "pong" {
		t.Errorf("Results().Root() = %v, want %q", got, "pong")
	}
}

func TestParamResult(t *testing.T) {
	defer leaktest.Check(t)()

	h := captest.New()
	defer h.Stop()

	reg := registry.New(0x5555, "Doubler").Add("double")
	table := reg.NewTable().
		Handle("double", chandler.ParamResult(func(ctx context.Context, n int) int {
			if chandler.ContextCallContext(ctx) == nil {
				t.Error("no call context in handler")
			}
			return n * 2
		}))

	hook := h.NewClient(table)
	defer hook.Release()

	req := reg.NewCall(hook, "double", 0)
	req.Params.SetRoot(21)
	resp, _ := req.Send(context.Background())
	r, err := resp.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := r.Results().Root(); got != 42 {
		t.Errorf("Results().Root() = %v, want 42", got)
	}
}
