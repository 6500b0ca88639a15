package guard

import (
	"context"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
)

// Result is the outcome of an imperatively guarded call.
// Executed is false when the action was denied; Message then holds the
// denial text and Value is the zero value.
type Result[T any] struct {
	Executed bool   `json:"executed"`
	Value    T      `json:"result,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Do evaluates action and runs fn synchronously when allowed.
// fn is never called on denial. An error from fn is returned as is.
func Do[T any](ctx context.Context, g *Guard, action domain.ActionKind, fn func(ctx context.Context) (T, error)) (Result[T], error) {
	d := g.check(ctx, action, domain.SurfaceImperative)
	if !d.Allowed {
		return Result[T]{Message: d.Message}, nil
	}
	v, err := fn(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	return Result[T]{Executed: true, Value: v}, nil
}

// Future is the pending outcome of Go.
type Future[T any] struct {
	done   chan struct{}
	result Result[T]
	err    error
}

func resolved[T any](r Result[T]) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), result: r}
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is ready or ctx ends.
func (f *Future[T]) Await(ctx context.Context) (Result[T], error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	}
}

// Go evaluates action synchronously and, when allowed, runs fn in a new
// goroutine. A denial yields an already resolved future and fn is never
// started.
func Go[T any](ctx context.Context, g *Guard, action domain.ActionKind, fn func(ctx context.Context) (T, error)) *Future[T] {
	d := g.check(ctx, action, domain.SurfaceImperative)
	if !d.Allowed {
		return resolved(Result[T]{Message: d.Message})
	}

	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		v, err := fn(ctx)
		if err != nil {
			f.err = err
			return
		}
		f.result = Result[T]{Executed: true, Value: v}
	}()
	return f
}
