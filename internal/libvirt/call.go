package libvirt

import (
	"context"
)

// call runs fn, a blocking libvirt RPC, and returns early with ctx.Err()
// when ctx is done first. go-libvirt calls cannot be aborted, so an
// abandoned RPC still completes in the background and its result is dropped.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		value T
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		v, err := fn()
		resultCh <- result{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-resultCh:
		return res.value, res.err
	}
}

// callErr is call for RPCs that only return an error.
func callErr(ctx context.Context, fn func() error) error {
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
