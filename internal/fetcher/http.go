package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// HTTPFetcher implements Fetcher using net/http.
// Every failure comes back as a *types.FetchError with a Kind set.
type HTTPFetcher struct {
	client      *http.Client
	logger      *slog.Logger
	userAgent   string
	maxBodySize int64
	timeout     time.Duration
}

// HTTPOption configures the HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithMaxBodySize overrides the response body cap.
func WithMaxBodySize(n int64) HTTPOption {
	return func(f *HTTPFetcher) { f.maxBodySize = n }
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) { f.timeout = d }
}

// WithHTTPClient swaps the underlying client, mostly for tests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger, opts ...HTTPOption) *HTTPFetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // We handle decompression ourselves (including brotli)
	}

	f := &HTTPFetcher{
		client:      &http.Client{Transport: transport},
		logger:      logger.With("component", "http_fetcher"),
		userAgent:   cfg.Catalog.UserAgent,
		maxBodySize: cfg.Catalog.MaxBodySize,
		timeout:     cfg.Catalog.RequestTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch executes an HTTP request and returns the response.
// Non-2xx statuses are returned as errors classified by ClassifyStatus.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	timeout := f.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, req.URLString(), body)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Kind: types.KindTransport, Err: err}
	}

	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}
	httpReq.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	httpReq.Header.Set("Accept-Language", "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	// Apply custom headers from request
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return nil, classifyTransport(ctx, req.URLString(), err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		var retryAfter time.Duration
		if httpResp.StatusCode == http.StatusTooManyRequests {
			retryAfter = parseRetryAfter(httpResp.Header.Get("Retry-After"))
		}
		return nil, types.ClassifyStatus(req.URLString(), httpResp.StatusCode, retryAfter,
			fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if f.maxBodySize > 0 && httpResp.ContentLength > f.maxBodySize {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Kind: types.KindDecode,
			Err: fmt.Errorf("%w: %d bytes (max %d)", types.ErrTooLarge, httpResp.ContentLength, f.maxBodySize)}
	}

	reader, err := decompressReader(httpResp, httpResp.Body)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Kind: types.KindDecode, Err: err}
	}
	if f.maxBodySize > 0 {
		reader = io.LimitReader(reader, f.maxBodySize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, classifyTransport(ctx, req.URLString(), err)
	}
	if f.maxBodySize > 0 && int64(len(data)) > f.maxBodySize {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Kind: types.KindDecode,
			Err: fmt.Errorf("%w: more than %d bytes", types.ErrTooLarge, f.maxBodySize)}
	}

	resp := types.NewResponse(req, httpResp, data, duration)

	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", resp.StatusCode,
		"size", len(data),
		"duration", duration,
	)

	return resp, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

// classifyTransport maps a client error to a FetchError. A cancelled parent
// context is never retryable; our own per-request deadline is a timeout.
func classifyTransport(parent context.Context, url string, err error) *types.FetchError {
	fe := &types.FetchError{URL: url, Kind: types.KindTransport, Err: err}
	if parent.Err() != nil {
		fe.Err = parent.Err()
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		fe.Kind = types.KindTimeout
		fe.Retryable = true
		return fe
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		fe.Kind = types.KindTimeout
		fe.Retryable = true
		return fe
	}
	fe.Retryable = isRetryableError(err)
	return fe
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
// Covers connection resets, unexpected EOF, and connection refused.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120 // cap at 2 minutes
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 0
}
