package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running,
// which usually means a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is implemented by connection pools.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be pinged.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// Writable is implemented by storage that can verify it accepts writes.
type Writable interface {
	Writable(ctx context.Context) error
}

// WritableCheck fails when s rejects writes.
func WritableCheck(s Writable) CheckFunc {
	return func(ctx context.Context) error {
		if err := s.Writable(ctx); err != nil {
			return errors.Wrap(err, "storage not writable")
		}
		return nil
	}
}
