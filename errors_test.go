package tangguh

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestClientErrorMessage(t *testing.T) {
	err := &ClientError{
		Type:       ErrorTypeTimeout,
		Message:    "request timed out",
		Cause:      errors.New("deadline exceeded"),
		RequestID:  "req-1",
		Attempts:   3,
		MaxRetries: 2,
	}

	msg := err.Error()
	for _, want := range []string{"Timeout", "request timed out", "deadline exceeded", "req-1", "attempts 3/3"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ClientError{Type: ErrorTypeConnection, Message: "connection failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	var clientErr *ClientError
	if !errors.As(wrapped, &clientErr) {
		t.Fatal("expected errors.As to find the ClientError")
	}
	if clientErr.Type != ErrorTypeConnection {
		t.Errorf("type = %q, want Connection", clientErr.Type)
	}
}

func TestClientErrorIsMapsSentinels(t *testing.T) {
	tests := []struct {
		errType  string
		sentinel error
	}{
		{ErrorTypeCircuitOpen, ErrCircuitOpen},
		{ErrorTypeRateLimit, ErrRateLimited},
		{ErrorTypeRetryExhausted, ErrRetryExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.errType, func(t *testing.T) {
			err := &ClientError{Type: tt.errType, Message: "rejected"}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %s error to match its sentinel", tt.errType)
			}
		})
	}

	conn := &ClientError{Type: ErrorTypeConnection, Message: "refused"}
	if errors.Is(conn, ErrCircuitOpen) {
		t.Error("connection errors must not match ErrCircuitOpen")
	}
}

func TestClientErrorIsMatchesSameType(t *testing.T) {
	a := &ClientError{Type: ErrorTypeTimeout, Message: "one"}
	b := &ClientError{Type: ErrorTypeTimeout, Message: "two"}
	c := &ClientError{Type: ErrorTypeConnection, Message: "three"}

	if !errors.Is(a, b) {
		t.Error("same-type ClientErrors must match")
	}
	if errors.Is(a, c) {
		t.Error("different-type ClientErrors must not match")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection", &ClientError{Type: ErrorTypeConnection}, true},
		{"timeout", &ClientError{Type: ErrorTypeTimeout}, true},
		{"circuit open", &ClientError{Type: ErrorTypeCircuitOpen}, true},
		{"rate limit", &ClientError{Type: ErrorTypeRateLimit}, true},
		{"retry exhausted", &ClientError{Type: ErrorTypeRetryExhausted}, true},
		{"plugin", &ClientError{Type: ErrorTypePlugin}, false},
		{"validation", &ClientError{Type: ErrorTypeValidation}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientErrorDebugInfo(t *testing.T) {
	err := &ClientError{
		Type:       ErrorTypeRetryExhausted,
		Message:    "all attempts failed",
		Cause:      errors.New("dial tcp: connection refused"),
		RequestID:  "req-9",
		Method:     "GET",
		URL:        "https://api.example.com/users",
		Endpoint:   "api.example.com/users",
		StatusCode: 0,
		Attempts:   4,
		MaxRetries: 3,
		Timestamp:  time.Now(),
		Duration:   1200 * time.Millisecond,
	}

	info := err.DebugInfo()
	for _, want := range []string{
		"RetryExhausted", "all attempts failed", "req-9", "GET",
		"api.example.com/users", "Attempts: 4/4", "connection refused",
	} {
		if !strings.Contains(info, want) {
			t.Errorf("DebugInfo missing %q:\n%s", want, info)
		}
	}
}

func TestNilClientError(t *testing.T) {
	var err *ClientError
	if err.Error() != "<nil>" {
		t.Errorf("nil Error() = %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("nil Unwrap() must return nil")
	}
}
