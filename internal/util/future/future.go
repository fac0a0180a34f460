package future

import (
	"context"
	"sync"
)

type result[T any] struct {
	v   T
	err error
}

// Future is a single-shot result that completes exactly once.
type Future[T any] struct {
	doneChannel chan struct{}
	res         result[T]
	once        sync.Once
}

// New runs fn in a goroutine and completes the Future when fn returns.
func New[T any](fn func() (T, error)) *Future[T] {
	f := Pending[T]()
	go func() {
		v, err := fn()
		f.complete(v, err)
	}()
	return f
}

// Pending creates a Future that is completed from the outside through
// Complete or Fail.
func Pending[T any]() *Future[T] {
	return &Future[T]{doneChannel: make(chan struct{})}
}

// FromValue creates an already-completed Future with a value.
func FromValue[T any](v T) *Future[T] {
	f := Pending[T]()
	f.complete(v, nil)
	return f
}

// FromError creates an already-completed Future with an error.
func FromError[T any](err error) *Future[T] {
	f := Pending[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// Complete resolves the Future with v. It reports false if the Future was
// already completed.
func (f *Future[T]) Complete(v T) bool {
	return f.complete(v, nil)
}

// Fail resolves the Future with err. It reports false if the Future was
// already completed.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.complete(zero, err)
}

// Await blocks until completion and returns the result.
func (f *Future[T]) Await() (T, error) {
	<-f.doneChannel
	return f.res.v, f.res.err
}

// AwaitContext waits until completion or until ctx is done, in which case
// ctx.Err() is returned.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.doneChannel:
		return f.res.v, f.res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// All waits for all futures and returns their values in order.
// If any future fails, it returns the first error encountered.
func All[T any](futures ...*Future[T]) *Future[[]T] {
	return New(func() ([]T, error) {
		out := make([]T, len(futures))
		for i, fut := range futures {
			v, err := fut.Await()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	})
}

// complete sets the result exactly once and closes doneChannel.
func (f *Future[T]) complete(v T, err error) bool {
	completed := false
	f.once.Do(func() {
		f.res = result[T]{v: v, err: err}
		close(f.doneChannel)
		completed = true
	})
	return completed
}
