package doccache

import "context"

// Future is the pending result of an asynchronous cache operation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func goFuture[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the operation has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the operation finishes or ctx is done. Giving up on the
// wait does not cancel the operation; cancel the context it was started with.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the operation finishes.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}
