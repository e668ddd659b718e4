package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"

	"github.com/creachadair/capflow/loop"
)

func TestLoopFIFO(t *testing.T) {
	defer leaktest.Check(t)()

	l := loop.New(0)
	defer l.Close()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		l.Defer(func() {
			got = append(got, i)
			if i == 4 {
				close(done)
			}
		})
	}
	<-done

	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("dispatch order (-want +got):\n%s", diff)
	}
}

func TestLoopNeverSynchronous(t *testing.T) {
	defer leaktest.Check(t)()

	l := loop.New(0)
	defer l.Close()

	ran := false
	done := make(chan struct{})
	l.Defer(func() {
		ran = true
		close(done)
	})
	// Defer must not have run fn before returning control to us.
	if ran {
		t.Fatal("Defer executed synchronously")
	}
	<-done
}

func TestDaemonsSwallowsErrors(t *testing.T) {
	defer leaktest.Check(t)()

	var got error
	d := loop.NewDaemons(func(err error) { got = err })
	d.Go(func() error { return errors.New("boom") })
	d.Wait()

	if got == nil || got.Error() != "boom" {
		t.Errorf("onError got %v, want boom", got)
	}
}

func TestDaemonsNilSinkDiscards(t *testing.T) {
	defer leaktest.Check(t)()

	d := loop.NewDaemons(nil)
	d.Go(func() error { return errors.New("ignored") })
	d.Wait() // must not panic or block
}

func TestFutureWaitTimeout(t *testing.T) {
	defer leaktest.Check(t)()

	f, _ := loop.NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want DeadlineExceeded", err)
	}
}
