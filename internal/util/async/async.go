package async

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Future is the completion token of a unit of work started with Go.
type Future[T any] struct {
	id      string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	value    T
	err      error
	finished time.Time
}

// Go starts fn on its own goroutine and returns its Future.
//
// fn receives a context that keeps the values of ctx but not its
// cancellation: the caller returning or cancelling its own context does not
// stop the work. Use Future.Cancel for that.
func Go[T any](ctx context.Context, id string, fn func(context.Context) (T, error)) *Future[T] {
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &Future[T]{
		id:      id,
		started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer cancel()

		var (
			value T
			err   error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s panicked: %v", id, r)
				}
			}()
			value, err = fn(workCtx)
		}()
		f.complete(value, err)
	}()

	return f
}

func (f *Future[T]) complete(value T, err error) {
	f.mu.Lock()
	f.value = value
	f.err = err
	f.finished = time.Now()
	f.mu.Unlock()
	close(f.done)
}

// ID returns the identifier the Future was started with.
func (f *Future[T]) ID() string { return f.id }

// Started returns when the work was started.
func (f *Future[T]) Started() time.Time { return f.started }

// Done is closed once the work has completed.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Completed reports whether the work has finished.
func (f *Future[T]) Completed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the work completes or ctx is done. A ctx expiring does not
// cancel the work itself.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel asks the work to stop by cancelling its context. The Future still
// completes, with whatever the work returns on cancellation.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Elapsed returns how long the work ran, or has been running so far.
func (f *Future[T]) Elapsed() time.Duration {
	if f.Completed() {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.finished.Sub(f.started)
	}
	return time.Since(f.started)
}
