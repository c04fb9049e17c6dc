// Package classify maps fetch failures onto a fixed error taxonomy.
//
// Classification drives the retry policy and circuit breaker accounting, so
// it must be total: every (error, status) pair maps to exactly one Kind.
// Checks run in a fixed order: timeout, DNS, TLS, connection, rate limit
// (429), server (5xx), client (4xx), then Unknown.
package classify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"strings"
)

// Kind is the classified category of a fetch failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindConnection
	KindDNS
	KindTLS
	KindRateLimited
	KindServer
	KindClient
)

// String returns the wire-stable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection_error"
	case KindDNS:
		return "dns_error"
	case KindTLS:
		return "tls_error"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server_error"
	case KindClient:
		return "client_error"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of String. Unrecognized names map to KindUnknown.
func ParseKind(s string) Kind {
	switch s {
	case "timeout":
		return KindTimeout
	case "connection_error":
		return KindConnection
	case "dns_error":
		return KindDNS
	case "tls_error":
		return KindTLS
	case "rate_limited":
		return KindRateLimited
	case "server_error":
		return KindServer
	case "client_error":
		return KindClient
	default:
		return KindUnknown
	}
}

// Classify maps a transport error and/or HTTP status code to a Kind.
// err takes precedence over statusCode; statusCode 0 means no response.
// It is a pure function with no side effects.
func Classify(err error, statusCode int) Kind {
	if err != nil {
		if kind, ok := classifyErr(err); ok {
			return kind
		}
	}

	switch {
	case statusCode == 429:
		return KindRateLimited
	case statusCode >= 500:
		return KindServer
	case statusCode >= 400:
		return KindClient
	}

	if err != nil {
		return classifyMessage(err.Error())
	}
	return KindUnknown
}

func classifyErr(err error) (Kind, bool) {
	// Timeouts first: a timed-out dial is a timeout, not a connection error.
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS, true
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return KindTLS, true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return KindTLS, true
	}
	var unknownAuthErr x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthErr) {
		return KindTLS, true
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return KindTLS, true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection, true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		// url.Error wraps the transport failure; recurse on the cause.
		return classifyErr(urlErr.Err)
	}

	return KindUnknown, false
}

// classifyMessage is the string-pattern fallback for errors that carry no
// usable type information (e.g. messages round-tripped through APIs).
func classifyMessage(msg string) Kind {
	m := strings.ToLower(msg)

	switch {
	case strings.Contains(m, "timeout"), strings.Contains(m, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(m, "no such host"), strings.Contains(m, "dns"):
		return KindDNS
	case strings.Contains(m, "tls"), strings.Contains(m, "x509"), strings.Contains(m, "certificate"):
		return KindTLS
	case strings.Contains(m, "connection refused"),
		strings.Contains(m, "connection reset"),
		strings.Contains(m, "broken pipe"),
		strings.Contains(m, "eof"):
		return KindConnection
	case strings.Contains(m, "429"), strings.Contains(m, "too many requests"),
		strings.Contains(m, "rate limit"):
		return KindRateLimited
	}

	return KindUnknown
}
