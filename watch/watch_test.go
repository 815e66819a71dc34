package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// tokens is a controllable detector.
type tokens struct {
	mu  sync.Mutex
	cur string
	err error
}

func (s *tokens) set(v string) {
	s.mu.Lock()
	s.cur = v
	s.mu.Unlock()
}

func (s *tokens) detect(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur, s.err
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestFileDetector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Controle - Obras.xlsx")
	det := FileDetector(path)
	ctx := context.Background()

	if _, err := det(ctx); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file error = %v", err)
	}
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("version 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("token unchanged after rewrite: %q", a)
	}
	if _, err := FileDetector(t.TempDir())(ctx); err == nil {
		t.Fatal("directory accepted")
	}
}

func TestOnChangeFiresOnNewToken(t *testing.T) {
	src := &tokens{cur: "a"}
	w := New(src.detect, Options{Interval: 10 * time.Millisecond})

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	eventually(t, func() bool { return w.Version() == "a" }, "initial token not seeded")
	time.Sleep(40 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Fatalf("fired without change: %d", got)
	}

	src.set("b")
	eventually(t, func() bool { return runs.Load() == 1 }, "no run after change")
	if w.Version() != "b" {
		t.Errorf("version = %q, want b", w.Version())
	}

	src.set("c")
	eventually(t, func() bool { return runs.Load() == 2 }, "no run after second change")

	st := w.Stats()
	if st.Reloads != 2 || st.ChangesDetected != 2 || st.Checks == 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestOnChangeDebounce(t *testing.T) {
	src := &tokens{cur: "0"}
	w := New(src.detect, Options{Interval: 10 * time.Millisecond, Debounce: 150 * time.Millisecond})

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	eventually(t, func() bool { return w.Version() == "0" }, "initial token not seeded")

	for _, v := range []string{"1", "2", "3", "4"} {
		src.set(v)
		time.Sleep(25 * time.Millisecond)
	}
	if got := runs.Load(); got != 0 {
		t.Fatalf("fired during debounce window: %d", got)
	}
	eventually(t, func() bool { return runs.Load() == 1 }, "debounced run missing")
	time.Sleep(200 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want exactly 1", got)
	}
	if w.Version() != "4" {
		t.Errorf("version = %q, want last token", w.Version())
	}
}

func TestOnChangeRetriesFailedAction(t *testing.T) {
	src := &tokens{cur: "a"}
	w := New(src.detect, Options{Interval: 10 * time.Millisecond})

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("workbook locked")
		}
		return nil
	})
	eventually(t, func() bool { return w.Version() == "a" }, "initial token not seeded")

	src.set("b")
	eventually(t, func() bool { return w.Version() == "b" }, "failed action never retried")
	if calls.Load() < 2 {
		t.Errorf("calls = %d", calls.Load())
	}
	if w.Stats().Errors == 0 {
		t.Error("failure not counted")
	}
}

func TestOnChangeSkipsPermanentFailure(t *testing.T) {
	errRejected := errors.New("no tracked team")
	src := &tokens{cur: "a"}
	w := New(src.detect, Options{
		Interval:  10 * time.Millisecond,
		Permanent: func(err error) bool { return errors.Is(err, errRejected) },
	})

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		calls.Add(1)
		return errRejected
	})
	eventually(t, func() bool { return w.Version() == "a" }, "initial token not seeded")

	src.set("b")
	eventually(t, func() bool { return w.Version() == "b" }, "rejected token not marked seen")
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1: a rejected input must not be retried", got)
	}
}

func TestOnChangeFireOnStart(t *testing.T) {
	src := &tokens{cur: "boot"}
	w := New(src.detect, Options{Interval: time.Hour, FireOnStart: true})

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.OnChange(ctx, func(context.Context) error {
			runs.Add(1)
			return nil
		})
		close(done)
	}()
	eventually(t, func() bool { return runs.Load() == 1 }, "startup run missing")
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnChange did not return after cancel")
	}
}

func TestOnChangeFileEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obras.csv")
	if err := os.WriteFile(path, []byte("DATA;EQUIPE\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := New(FileDetector(path), Options{Interval: 10 * time.Millisecond})

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	eventually(t, func() bool { return w.Version() != "" }, "initial token not seeded")

	if err := os.WriteFile(path, []byte("DATA;EQUIPE\n01/02/2026;MA-BCB-O001M\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return runs.Load() == 1 }, "rewrite not detected")
}
