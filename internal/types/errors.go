package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrMissingCredential = errors.New("missing required credential")
	ErrNavigation        = errors.New("page navigation failed")
	ErrNotFound          = errors.New("not found")
	ErrNoJSON            = errors.New("no JSON payload in response")
	ErrRetriesExhausted  = errors.New("max retries exceeded")
	ErrEmptyResponse     = errors.New("empty response body")
	ErrInvalidURL        = errors.New("invalid URL")
	ErrTooLarge          = errors.New("body exceeds size limit")
	ErrNotImage          = errors.New("body is not an image")
)

// ErrorKind classifies a fetch failure so retry policy can key off structured data.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindTimeout
	KindStatus
	KindRateLimit
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindRateLimit:
		return "rate_limit"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError wraps errors that occur while talking to a remote collaborator.
type FetchError struct {
	URL        string
	StatusCode int
	Kind       ErrorKind
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d, %s): %v", e.URL, e.StatusCode, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch error for %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// IsRateLimited reports whether err carries a rate-limit classification.
func IsRateLimited(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == KindRateLimit
	}
	return false
}

// IsRetryable reports whether err is a FetchError marked retryable.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// ClassifyStatus builds a FetchError for a non-success HTTP status.
func ClassifyStatus(url string, status int, retryAfter time.Duration, err error) *FetchError {
	fe := &FetchError{URL: url, StatusCode: status, Kind: KindStatus, Err: err}
	switch {
	case status == 429:
		fe.Kind = KindRateLimit
		fe.Retryable = true
		fe.RetryAfter = retryAfter
	case status >= 500:
		fe.Retryable = true
	}
	return fe
}

// ParseError wraps errors that occur during parsing.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the record normalisation pipeline.
type PipelineError struct {
	Stage  string
	Record *ProductRecord
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
