package exchange

import (
	"errors"
	"testing"
)

func TestError_ErrorIncludesCodeWhenPresent(t *testing.T) {
	e := &Error{Code: "-1121", Message: "Invalid symbol", Endpoint: "/api/v3/order"}
	want := "exchange: /api/v3/order [-1121]: Invalid symbol"
	if got := e.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestError_ErrorOmitsCodeWhenAbsent(t *testing.T) {
	e := &Error{Message: "timeout", Endpoint: "/api/v3/account"}
	want := "exchange: /api/v3/account: timeout"
	if got := e.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestError_UnwrapReturnsWrappedErr(t *testing.T) {
	wrapped := errors.New("dial tcp: timeout")
	e := &Error{Endpoint: "/api/v3/ticker", Err: wrapped}
	if !errors.Is(e, wrapped) {
		t.Fatal("errors.Is did not find the wrapped error")
	}
}

func TestRateLimitError_Error(t *testing.T) {
	e := &RateLimitError{Endpoint: "/api/v3/order", RetryAfter: 30}
	want := "exchange: /api/v3/order: rate limited, retry after 30s"
	if got := e.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestSystemDegradedError_Error(t *testing.T) {
	e := &SystemDegradedError{Status: 1}
	want := "exchange: system status degraded: 1"
	if got := e.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
