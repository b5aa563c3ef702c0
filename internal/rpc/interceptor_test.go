package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetryInterceptorRecovers(t *testing.T) {
	calls := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		if calls < 3 {
			return status.Error(codes.Unavailable, "flaky")
		}
		return nil
	}

	interceptor := RetryInterceptor(5, 1, testLogger())
	if err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if calls != 3 {
		t.Errorf("invoker called %d times, want 3", calls)
	}
}

func TestRetryInterceptorStopsOnPermanentError(t *testing.T) {
	calls := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.InvalidArgument, "bad request")
	}

	interceptor := RetryInterceptor(5, 1, testLogger())
	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
	if calls != 1 {
		t.Errorf("invoker called %d times, want 1", calls)
	}
}

func TestRetryInterceptorExhaustsAttempts(t *testing.T) {
	calls := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.Unavailable, "still down")
	}

	interceptor := RetryInterceptor(3, 1, testLogger())
	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("err = %v, want Unavailable", err)
	}
	if calls != 3 {
		t.Errorf("invoker called %d times, want 3", calls)
	}
}

func TestRetryInterceptorHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		cancel()
		return status.Error(codes.Unavailable, "down")
	}

	interceptor := RetryInterceptor(5, 1, testLogger())
	err := interceptor(ctx, "/svc/Method", nil, nil, nil, invoker)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
