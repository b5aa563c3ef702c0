package rpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryInterceptor retries transient unary call failures with exponential
// backoff and logs each failed attempt. Non-transient statuses surface
// immediately.
func RetryInterceptor(maxAttempts int, baseWait time.Duration, log *slog.Logger) grpc.UnaryClientInterceptor {
	if baseWait <= 0 {
		baseWait = 250 * time.Millisecond
	}
	return func(
		ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		var err error
		wait := baseWait
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			err = invoker(ctx, method, req, reply, cc, opts...)
			if err == nil || !retryable(err) {
				return err
			}
			if attempt == maxAttempts {
				break
			}
			log.Warn("rpc attempt failed",
				"method", method, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
		return err
	}
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}
