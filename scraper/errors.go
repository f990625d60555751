package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// errorKind labels a request failure for metrics and the run summary.
type errorKind string

const (
	errKindTimeout     errorKind = "timeout"
	errKindConnection  errorKind = "connection"
	errKindForbidden   errorKind = "forbidden"
	errKindNotFound    errorKind = "not_found"
	errKindRateLimited errorKind = "rate_limited"
	errKindOther       errorKind = "other"
	errKindUnknown     errorKind = "unknown"
)

// requestError wraps a fetch failure with its classification.
type requestError struct {
	kind errorKind
	err  error
}

func (e requestError) Error() string {
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

func (e requestError) Unwrap() error {
	return e.err
}

// classifyError maps a transport error and HTTP status onto an errorKind.
func classifyError(err error, statusCode int) errorKind {
	if err == nil && statusCode == 0 {
		return errKindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errKindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errKindConnection
	}

	switch statusCode {
	case http.StatusForbidden:
		return errKindForbidden
	case http.StatusNotFound:
		return errKindNotFound
	case http.StatusTooManyRequests:
		return errKindRateLimited
	}

	return errKindOther
}
