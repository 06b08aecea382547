package fetcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestFetcher(opts ...HTTPOption) *HTTPFetcher {
	return NewHTTPFetcher(config.DefaultConfig(), testLogger, opts...)
}

func fetchURL(t *testing.T, f *HTTPFetcher, url string) (*types.Response, error) {
	t.Helper()
	req, err := types.NewRequest(url)
	require.NoError(t, err)
	return f.Fetch(context.Background(), req)
}

func TestHTTPFetcherSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := fetchURL(t, newTestFetcher(), srv.URL)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.ContentType)
}

func TestHTTPFetcherBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte("thuốc giảm đau"))
		_ = bw.Close()
	}))
	defer srv.Close()

	resp, err := fetchURL(t, newTestFetcher(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "thuốc giảm đau", string(resp.Body))
}

func TestHTTPFetcherRejectsOversizeBody(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chunked" {
			for i := 0; i < 4; i++ {
				_, _ = w.Write(body[:1024])
				w.(http.Flusher).Flush()
			}
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := newTestFetcher(WithMaxBodySize(2048))
	for _, path := range []string{"/", "/chunked"} {
		_, err := fetchURL(t, f, srv.URL+path)
		require.Error(t, err, path)
		assert.ErrorIs(t, err, types.ErrTooLarge, path)
		assert.False(t, types.IsRetryable(err), path)
	}

	resp, err := fetchURL(t, newTestFetcher(WithMaxBodySize(4096)), srv.URL)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 4096)
}

func TestHTTPFetcherStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		kind      types.ErrorKind
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, types.KindRateLimit, true},
		{"server error", http.StatusServiceUnavailable, types.KindStatus, true},
		{"not found", http.StatusNotFound, types.KindStatus, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "7")
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := fetchURL(t, newTestFetcher(), srv.URL)
			require.Error(t, err)

			var fe *types.FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.retryable, fe.Retryable)
			if tt.kind == types.KindRateLimit {
				assert.Equal(t, 7*time.Second, fe.RetryAfter)
				assert.True(t, types.IsRateLimited(err))
			}
		})
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := fetchURL(t, newTestFetcher(WithTimeout(50*time.Millisecond)), srv.URL)
	require.Error(t, err)

	var fe *types.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, types.KindTimeout, fe.Kind)
	assert.True(t, fe.Retryable)
}

func TestHTTPFetcherCancelledNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := types.NewRequest(srv.URL)
	_, err := newTestFetcher().Fetch(ctx, req)
	require.Error(t, err)
	assert.False(t, types.IsRetryable(err))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, 120*time.Second, parseRetryAfter("9999"))
}

func TestNewPacer(t *testing.T) {
	p := NewPacer(0)
	for i := 0; i < 5; i++ {
		assert.True(t, p.Allow())
	}

	p = NewPacer(time.Hour)
	assert.True(t, p.Allow(), "first operation is immediate")
	assert.False(t, p.Allow())
}
