package util

import (
	"context"
	"time"
)

// Retry runs fn until it succeeds, giving up after attempts tries. The wait
// between tries starts at baseWait and doubles each time. Cancelling the
// context aborts the wait; the error of the final try is returned otherwise.
// Market-data fetches use this to ride out transient API failures.
func Retry(ctx context.Context, attempts int, baseWait time.Duration, fn func() error) error {
	wait := baseWait
	var err error
	for try := 1; ; try++ {
		if err = fn(); err == nil {
			return nil
		}
		if try >= attempts {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}
