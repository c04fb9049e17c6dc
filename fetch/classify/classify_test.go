package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		expect Kind
	}{
		{"deadline exceeded", context.DeadlineExceeded, 0, KindTimeout},
		{"net timeout", timeoutErr{}, 0, KindTimeout},
		{"wrapped timeout", fmt.Errorf("fetch: %w", context.DeadlineExceeded), 0, KindTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "example.invalid"}, 0, KindDNS},
		{"url-wrapped dns", &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Err: "no such host"}}, 0, KindDNS},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, 0, KindConnection},
		{"rate limited", nil, 429, KindRateLimited},
		{"server error", nil, 500, KindServer},
		{"bad gateway", nil, 502, KindServer},
		{"client error", nil, 404, KindClient},
		{"forbidden", nil, 403, KindClient},
		{"tls message", errors.New("tls: handshake failure"), 0, KindTLS},
		{"connection reset message", errors.New("read: connection reset by peer"), 0, KindConnection},
		{"rate limit message", errors.New("429 Too Many Requests"), 0, KindRateLimited},
		{"unknown message", errors.New("something odd happened"), 0, KindUnknown},
		{"no error no status", nil, 0, KindUnknown},
		{"error with status", errors.New("odd"), 503, KindServer},
	}

	for _, tt := range tests {
		if got := Classify(tt.err, tt.status); got != tt.expect {
			t.Errorf("%s: Classify(%v, %d) = %v, want %v", tt.name, tt.err, tt.status, got, tt.expect)
		}
	}
}

func TestKindStringRoundTrip(t *testing.T) {
	kinds := []Kind{
		KindTimeout, KindConnection, KindDNS, KindTLS,
		KindRateLimited, KindServer, KindClient, KindUnknown,
	}
	for _, k := range kinds {
		if got := ParseKind(k.String()); got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if got := ParseKind("not-a-kind"); got != KindUnknown {
		t.Errorf("ParseKind(not-a-kind) = %v, want KindUnknown", got)
	}
}
