package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request represents an outbound request to a remote collaborator.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method (GET, POST, etc.). Defaults to GET.
	Method string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Body is the request body for POST/PUT requests.
	Body []byte

	// Timeout overrides the client timeout for this request.
	Timeout time.Duration

	// Meta stores arbitrary metadata (e.g. "wait_selector" for the browser fetcher).
	Meta map[string]any

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a new GET Request.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}

	return &Request{
		URL:       u,
		Method:    http.MethodGet,
		Headers:   make(http.Header),
		Meta:      make(map[string]any),
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// MetaString returns a string meta value or "".
func (r *Request) MetaString(key string) string {
	v, ok := r.Meta[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
