package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(nil)
	if err := s.Add("sync", "every tuesday", func(context.Context) error { return nil }); err == nil {
		t.Fatal("invalid spec accepted")
	}
	if err := s.Add("sync", "*/15 * * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if !s.Next("unknown").IsZero() {
		t.Error("Next of unknown job should be zero")
	}
}

func TestRunExecutesJobsUntilCancelled(t *testing.T) {
	s := New(nil)
	var ok, failing atomic.Int32
	var sawCtx atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())

	if err := s.Add("sync", "@every 1s", func(jobCtx context.Context) error {
		if jobCtx == ctx {
			sawCtx.Store(true)
		}
		ok.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("broken", "@every 1s", func(context.Context) error {
		failing.Add(1)
		return errors.New("remote unavailable")
	}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for ok.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if ok.Load() < 2 {
		t.Fatalf("job ran %d times", ok.Load())
	}
	if failing.Load() < 2 {
		t.Errorf("failing job stopped being scheduled: %d runs", failing.Load())
	}
	if !sawCtx.Load() {
		t.Error("job did not receive the Run context")
	}
	if s.Next("sync").IsZero() {
		t.Error("Next is zero while running")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
