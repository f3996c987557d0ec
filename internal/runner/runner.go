package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// ErrTimeout is returned by Run when the deadline passes before the work
// finishes. The work itself keeps running in the background.
var ErrTimeout = errors.New("runner: task timed out")

// PanicError is the failure recorded for a task whose work panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("runner: task panicked: %v", e.Value)
}

// Unwrap exposes the panic value when the work panicked with an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Task is one invocation of a unit of work on its own goroutine. The result
// and failure are written once by that goroutine before Done is closed and
// are never touched afterwards.
type Task[T any] struct {
	done    chan struct{}
	result  T
	err     error
	started time.Time
}

// Go starts work on a new goroutine and returns its handle without waiting.
// The work receives a context carrying the values of ctx but detached from its
// cancellation, so nothing the caller does later can cancel it.
func Go[T any](ctx context.Context, work func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{
		done:    make(chan struct{}),
		started: time.Now(),
	}
	tasksStarted.Inc()

	workCtx := context.WithoutCancel(ctx)
	go t.run(workCtx, work)

	return t
}

func (t *Task[T]) run(ctx context.Context, work func(context.Context) (T, error)) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			panicsTotal.Inc()
			t.err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		taskDuration.Observe(time.Since(t.started).Seconds())
	}()

	t.result, t.err = work(ctx)
}

// Done returns a channel that is closed when the work has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Completed reports whether the work has finished.
func (t *Task[T]) Completed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Join waits up to timeout for the work to finish and reports whether it did.
// A timeout <= 0 waits indefinitely. Join never returns the work's failure;
// inspect Result and Err afterwards.
func (t *Task[T]) Join(timeout time.Duration) bool {
	if timeout <= 0 {
		<-t.done
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.done:
		return true
	case <-timer.C:
		return t.Completed()
	}
}

// Result returns the captured result, or the zero value while the work is
// still running.
func (t *Task[T]) Result() T {
	if !t.Completed() {
		var zero T
		return zero
	}
	return t.result
}

// Err returns the captured failure, or nil while the work is still running.
func (t *Task[T]) Err() error {
	if !t.Completed() {
		return nil
	}
	return t.err
}

// Wait blocks until the work finishes or ctx is done and returns the work's
// result and failure unchanged.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Run starts work on a new goroutine and waits for it up to timeout. A
// timeout <= 0 waits indefinitely.
//
// If the work returns an error, Run returns that same error value, unwrapped.
// If the deadline passes first, Run returns ErrTimeout; if ctx is done first,
// it returns ctx.Err(). In both cases the work is left running.
func Run[T any](ctx context.Context, timeout time.Duration, work func(context.Context) (T, error)) (T, error) {
	t := Go(ctx, work)

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-t.done:
		return t.result, t.err
	case <-expired:
		if t.Completed() {
			return t.result, t.err
		}
		timeoutsTotal.Inc()
		var zero T
		return zero, ErrTimeout
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wrap returns fn decorated so that every call runs through Run with the
// given timeout.
func Wrap[A, T any](timeout time.Duration, fn func(context.Context, A) (T, error)) func(context.Context, A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		return Run(ctx, timeout, func(ctx context.Context) (T, error) {
			return fn(ctx, arg)
		})
	}
}

// WrapGo returns fn decorated so that every call starts a Task and returns
// its handle immediately.
func WrapGo[A, T any](fn func(context.Context, A) (T, error)) func(context.Context, A) *Task[T] {
	return func(ctx context.Context, arg A) *Task[T] {
		return Go(ctx, func(ctx context.Context) (T, error) {
			return fn(ctx, arg)
		})
	}
}
