package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why a fetch failed.
type Kind int

const (
	// KindUnknown is reported for errors that did not come from this package.
	KindUnknown Kind = iota

	// KindTimeout means the per-request timeout or the caller's deadline expired.
	KindTimeout

	// KindConnectionFailed covers DNS, dial, TLS and other transport failures.
	KindConnectionFailed

	// KindHTTPStatus means the server answered with a non-2xx status.
	KindHTTPStatus

	// KindInvalidResponse means the body could not be read or decoded.
	KindInvalidResponse
)

// Sentinel errors matching each Kind, usable with errors.Is.
var (
	ErrTimeout          = errors.New("fetch timed out")
	ErrConnectionFailed = errors.New("connection failed")
	ErrHTTPStatus       = errors.New("unexpected HTTP status")
	ErrInvalidResponse  = errors.New("invalid response")
)

// String returns the short name of the kind used in logs and reports.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionFailed:
		return "connection_failed"
	case KindHTTPStatus:
		return "http_status"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindConnectionFailed:
		return ErrConnectionFailed
	case KindHTTPStatus:
		return ErrHTTPStatus
	case KindInvalidResponse:
		return ErrInvalidResponse
	default:
		return nil
	}
}

// Error is the typed failure returned by Client.Fetch.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// URL is the requested URL.
	URL string

	// StatusCode is set for KindHTTPStatus.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the failure kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the failure kind from err.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// StatusCodeOf returns the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// classifyTransport maps an error from http.Client.Do or a body read.
func classifyTransport(ctx context.Context, err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindConnectionFailed
}
