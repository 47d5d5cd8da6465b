package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// nopHost satisfies Host for executor tests; the tasks never call it.
type nopHost struct{}

func (nopHost) RenderViewport(ctx context.Context, width, height int) (*Pixels, error) {
	return nil, ErrUnsupported
}

func (nopHost) EnumerateObjects(ctx context.Context) ([]Object, error) { return nil, nil }

func (nopHost) RunScript(ctx context.Context, code string) (string, error) { return "", nil }

func (nopHost) CollectSceneStats(ctx context.Context) (SceneStats, error) {
	return SceneStats{}, nil
}

func newStartedExecutor(t *testing.T) *Executor {
	t.Helper()
	e := NewExecutor(nopHost{}, 4, nil)
	e.Start()
	t.Cleanup(e.Stop)
	return e
}

func TestExecutor_DoReturnsResult(t *testing.T) {
	// Arrange
	e := newStartedExecutor(t)
	ran := false

	// Act
	err := e.Do(context.Background(), "noop", func(ctx context.Context, h Host) error {
		ran = true
		return nil
	})

	// Assert
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !ran {
		t.Error("task did not run")
	}
}

func TestExecutor_WrapsTaskErrors(t *testing.T) {
	e := newStartedExecutor(t)
	cause := errors.New("script raised NameError")

	err := e.Do(context.Background(), "run_script", func(ctx context.Context, h Host) error {
		return cause
	})

	if !IsExecutionError(err) {
		t.Fatalf("error = %v, want *ExecutionError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error should wrap cause: %v", err)
	}
}

func TestExecutor_RecoversPanics(t *testing.T) {
	e := newStartedExecutor(t)

	err := e.Do(context.Background(), "explode", func(ctx context.Context, h Host) error {
		panic("host crashed")
	})

	if !IsExecutionError(err) {
		t.Fatalf("error = %v, want *ExecutionError", err)
	}

	// Executor keeps serving after a panic.
	if err := e.Do(context.Background(), "noop", func(ctx context.Context, h Host) error { return nil }); err != nil {
		t.Errorf("Do() after panic error = %v", err)
	}
}

func TestExecutor_SerializesTasks(t *testing.T) {
	// Arrange
	e := newStartedExecutor(t)
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup

	// Act
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Do(context.Background(), "touch", func(ctx context.Context, h Host) error {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	// Assert
	if got := maxActive.Load(); got != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", got)
	}
}

func TestExecutor_ContextCancelledWhileWaiting(t *testing.T) {
	e := newStartedExecutor(t)
	release := make(chan struct{})
	defer close(release)
	running := make(chan struct{})

	go e.Do(context.Background(), "block", func(ctx context.Context, h Host) error {
		close(running)
		<-release
		return nil
	})
	<-running

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := e.Do(ctx, "late", func(ctx context.Context, h Host) error { return nil })

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}

func TestExecutor_DoAfterStop(t *testing.T) {
	e := NewExecutor(nopHost{}, 1, nil)
	e.Start()
	e.Stop()

	err := e.Do(context.Background(), "noop", func(ctx context.Context, h Host) error { return nil })

	if !errors.Is(err, ErrExecutorStopped) {
		t.Errorf("error = %v, want ErrExecutorStopped", err)
	}
}

func TestExecutor_StopWithoutStart(t *testing.T) {
	e := NewExecutor(nopHost{}, 1, nil)

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked on an executor that was never started")
	}
}

func TestNewExecutor_NilHostPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewExecutor(nil) should panic")
		}
	}()
	NewExecutor(nil, 1, nil)
}
