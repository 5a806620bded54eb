package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// FailureKind enumerates the Fetcher's typed failure taxonomy from
// spec.md §4.1. Every non-nil error returned by Fetch can be asserted to
// *Failure and switched on Kind.
type FailureKind string

const (
	FailureTimeout             FailureKind = "timeout"
	FailureDNS                 FailureKind = "dns"
	FailureConnectionRefused   FailureKind = "connection_refused"
	FailureTLS                 FailureKind = "tls_failure"
	FailureHTTPClientError     FailureKind = "http_client_error"
	FailureHTTPServerError     FailureKind = "http_server_error"
	FailureTooLarge            FailureKind = "too_large"
	FailurePayloadDecodeFailed FailureKind = "payload_decode_failed"
)

// Failure is a typed fetch failure. StatusCode is populated only for
// FailureHTTPClientError and FailureHTTPServerError.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", f.Kind, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("fetch %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether the failure is one the retry policy should
// re-attempt: timeouts, connection refusals, and 408/429/5xx responses.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case FailureTimeout, FailureConnectionRefused, FailureHTTPServerError:
		return true
	case FailureHTTPClientError:
		return f.StatusCode == 408 || f.StatusCode == 429
	default:
		return false
	}
}

// classifyTransportError maps a transport-level error (from http.Client.Do)
// to a typed Failure. HTTP status codes are classified separately in
// statusFailure since they arrive as a successful round trip.
func classifyTransportError(err error) *Failure {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &Failure{Kind: FailureTimeout, Err: err}
		}
		err = urlErr.Err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTimeout, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Failure{Kind: FailureDNS, Err: err}
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return &Failure{Kind: FailureTLS, Err: err}
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return &Failure{Kind: FailureTLS, Err: err}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Failure{Kind: FailureConnectionRefused, Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return &Failure{Kind: FailureTimeout, Err: err}
		}
		if opErr.Op == "dial" {
			return &Failure{Kind: FailureConnectionRefused, Err: err}
		}
	}

	return &Failure{Kind: FailureConnectionRefused, Err: err}
}

// statusFailure maps a completed HTTP response's status code to a typed
// Failure, or nil for success statuses (anything < 400).
func statusFailure(statusCode int) *Failure {
	switch {
	case statusCode < 400:
		return nil
	case statusCode < 500:
		return &Failure{Kind: FailureHTTPClientError, StatusCode: statusCode, Err: fmt.Errorf("client error")}
	default:
		return &Failure{Kind: FailureHTTPServerError, StatusCode: statusCode, Err: fmt.Errorf("server error")}
	}
}
