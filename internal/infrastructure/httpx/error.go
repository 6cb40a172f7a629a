// Package httpx classifies venue API failures and retries the ones worth
// retrying. Every outbound client (kalshi, polymarket) funnels its errors
// through here so the rest of the engine only sees three kinds of failure.
package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind partitions failures by how the caller should react.
type Kind int

const (
	// KindTransient covers network faults, timeouts and 5xx answers.
	KindTransient Kind = iota
	// KindRateLimited is a 429; the venue told us to back off.
	KindRateLimited
	// KindPermanent is a 4xx (other than 408/429); retrying cannot help.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "permanent"
	}
}

// Error is the classified failure for one request.
type Error struct {
	Kind       Kind
	StatusCode int
	// RetryAfter is the server-advertised wait, zero when none was given.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt can succeed.
func (e *Error) Retryable() bool { return e.Kind != KindPermanent }

// ClassifyStatus maps an HTTP status to a classified error. header may be
// nil; when present the Retry-After value is honored.
func ClassifyStatus(status int, header http.Header) *Error {
	base := fmt.Errorf("unexpected status %d", status)
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{
			Kind:       KindRateLimited,
			StatusCode: status,
			RetryAfter: parseRetryAfter(header),
			Err:        base,
		}
	case status == http.StatusRequestTimeout || status >= 500:
		return &Error{
			Kind:       KindTransient,
			StatusCode: status,
			RetryAfter: parseRetryAfter(header),
			Err:        base,
		}
	default:
		return &Error{Kind: KindPermanent, StatusCode: status, Err: base}
	}
}

// Transient wraps a network-level failure.
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Err: err}
}

// Permanent wraps a failure that no retry can fix.
func Permanent(err error) *Error {
	return &Error{Kind: KindPermanent, Err: err}
}

// parseRetryAfter accepts both forms the header allows: delta seconds and an
// HTTP date. Unparseable or absent values yield zero.
func parseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
