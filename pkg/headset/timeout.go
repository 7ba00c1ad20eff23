package headset

import (
	"context"
	"errors"
	"time"

	"github.com/srg/bioble/internal/device"
	"github.com/srg/bioble/internal/groutine"
	"github.com/srg/bioble/pkg/status"
)

type result[T any] struct {
	v   T
	err error
}

// withTimeout races fn against timeout. fn runs in a named goroutine with a
// context that is cancelled once the race is decided; a result arriving after
// the deadline is handed to discard (when set) and otherwise dropped.
func withTimeout[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error), discard func(T)) (T, error) {
	callCtx, cancel := context.WithCancel(ctx)
	ch := make(chan result[T], 1)

	groutine.Go(callCtx, name, func(gctx context.Context) {
		v, err := fn(gctx)
		ch <- result[T]{v: v, err: err}
	})

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	abandon := func() {
		cancel()
		if discard != nil {
			go func() {
				if r := <-ch; r.err == nil {
					discard(r.v)
				}
			}()
		}
	}

	var zero T
	select {
	case r := <-ch:
		cancel()
		return r.v, r.err
	case <-expired:
		abandon()
		return zero, device.ErrTimeout
	case <-ctx.Done():
		abandon()
		return zero, ctx.Err()
	}
}

// call is withTimeout for calls without a result.
func call(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	_, err := withTimeout(ctx, timeout, name, func(cctx context.Context) (struct{}, error) {
		return struct{}{}, fn(cctx)
	}, nil)
	return err
}

func isTimeout(err error) bool {
	return errors.Is(err, device.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// nativeFailure maps a failed native call: Timeout when it ran out of time,
// General otherwise.
func nativeFailure(op string, err error) error {
	if isTimeout(err) {
		return status.New(status.Timeout, op, err)
	}
	return status.New(status.General, op, err)
}

// commandFailure maps a failed command write.
func commandFailure(op string, err error) error {
	switch {
	case isTimeout(err):
		return status.New(status.Timeout, op, err)
	case errors.Is(err, device.ErrWriteRejected):
		return status.New(status.StopError, op, err)
	case errors.Is(err, device.ErrNotConnected):
		return status.New(status.NotOpen, op, err)
	default:
		return status.New(status.General, op, err)
	}
}
