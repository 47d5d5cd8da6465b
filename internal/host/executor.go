package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultQueueSize is the default number of tasks that may wait for the host.
const DefaultQueueSize = 64

// TaskFunc runs against the host on the executor goroutine.
type TaskFunc func(ctx context.Context, h Host) error

type task struct {
	ctx    context.Context
	name   string
	fn     TaskFunc
	result chan error
}

// Executor marshals all host access onto a single goroutine.
// Network workers hand tasks to Do and block until the result comes back,
// so the host never sees concurrent calls.
type Executor struct {
	host   Host
	tasks  chan task
	logger *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewExecutor creates an executor for h. Call Start before submitting tasks.
func NewExecutor(h Host, queueSize int, logger *slog.Logger) *Executor {
	if h == nil {
		panic("host must not be nil")
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		host:   h,
		tasks:  make(chan task, queueSize),
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the executor goroutine. Calling it more than once is a no-op.
func (e *Executor) Start() {
	e.startOnce.Do(func() {
		go e.loop()
	})
}

// Stop stops accepting tasks and waits for the running task to finish.
// Queued tasks are failed with ErrExecutorStopped.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
	// Never started: nothing to wait for.
	e.startOnce.Do(func() {
		close(e.done)
	})
	<-e.done
}

// Host returns the host this executor serializes access to.
func (e *Executor) Host() Host {
	return e.host
}

// Do submits fn and waits for it to complete.
// Errors returned by fn are wrapped in *ExecutionError unless they already are one.
func (e *Executor) Do(ctx context.Context, name string, fn TaskFunc) error {
	t := task{
		ctx:    ctx,
		name:   name,
		fn:     fn,
		result: make(chan error, 1),
	}

	select {
	case <-e.stop:
		return ErrExecutorStopped
	default:
	}

	select {
	case e.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stop:
		return ErrExecutorStopped
	}

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		// The loop may have finished this task just before exiting.
		select {
		case err := <-t.result:
			return err
		default:
			return ErrExecutorStopped
		}
	}
}

func (e *Executor) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.stop:
			e.drain()
			return
		case t := <-e.tasks:
			t.result <- e.run(t)
		}
	}
}

func (e *Executor) drain() {
	for {
		select {
		case t := <-e.tasks:
			t.result <- ErrExecutorStopped
		default:
			return
		}
	}
}

func (e *Executor) run(t task) (err error) {
	if ctxErr := t.ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("host task panicked", "task", t.name, "panic", r)
			err = &ExecutionError{Op: t.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	err = t.fn(t.ctx, e.host)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecutionError{Op: t.name, Err: err}
}
