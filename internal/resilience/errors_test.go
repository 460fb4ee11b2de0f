package resilience

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("portal overloaded"), 503), true},
		{"wrapped explicit", fmt.Errorf("search: %w", NewTransientError(errors.New("rate limited"), 429)), true},
		{"plain error", errors.New("registry: detail container not found"), false},
		{"connection reset", fmt.Errorf("read tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"tls message", errors.New("net/http: TLS handshake timeout"), true},
		{"io timeout message", errors.New("read: i/o timeout"), true},
		{"broken pipe message", errors.New("write: broken pipe"), true},
		{"dropped keep-alive", fmt.Errorf("Post \"https://portal.test/grp/\": %w", io.EOF), true},
		{"truncated body", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}
	for _, code := range []int{200, 302, 400, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to not be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("gateway timeout")
	te := NewTransientError(inner, 504)

	if !errors.Is(te, inner) {
		t.Error("errors.Is should reach the inner error")
	}
	if te.Error() != "gateway timeout" {
		t.Errorf("Error() = %q", te.Error())
	}
	if te.StatusCode != 504 {
		t.Errorf("StatusCode = %d, want 504", te.StatusCode)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"  ", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"soon", 0},
		{"Tue, 04 Jun 2024 09:00:30 GMT", 30 * time.Second},
		{"Tue, 04 Jun 2024 08:59:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRetryAfter_FromWrappedError(t *testing.T) {
	te := NewTransientError(errors.New("slow down"), 429)
	te.RetryAfter = 7 * time.Second

	if got := retryAfter(fmt.Errorf("search: %w", te)); got != 7*time.Second {
		t.Errorf("retryAfter = %s, want 7s", got)
	}
	if got := retryAfter(errors.New("plain")); got != 0 {
		t.Errorf("retryAfter = %s, want 0", got)
	}
}
