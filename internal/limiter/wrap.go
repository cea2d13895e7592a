package limiter

import "context"

// Do acquires one slot from l and then runs fn. If the acquire fails fn is
// not called and the acquire error is returned. fn's error is returned as is.
func Do(ctx context.Context, l *Limiter, fn func(context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// Call is Do for functions returning a value.
func Call[T any](ctx context.Context, l *Limiter, fn func(context.Context) (T, error)) (T, error) {
	if err := l.Acquire(ctx); err != nil {
		var zero T
		return zero, err
	}
	return fn(ctx)
}

// WrapFunc returns fn gated by l.
func WrapFunc(l *Limiter, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return Do(ctx, l, fn)
	}
}

// Wrap returns fn gated by l. Each invocation costs exactly one admission,
// whether fn succeeds or fails.
func Wrap[A, T any](l *Limiter, fn func(context.Context, A) (T, error)) func(context.Context, A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		if err := l.Acquire(ctx); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx, arg)
	}
}

// RateLimited builds a dedicated limiter and wraps fn with it.
func RateLimited[A, T any](rate float64, domain Domain, fn func(context.Context, A) (T, error), opts ...Option) (func(context.Context, A) (T, error), error) {
	l, err := New(rate, domain, opts...)
	if err != nil {
		return nil, err
	}
	return Wrap(l, fn), nil
}
