package observability

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.ImagesDownloaded.Add(3)
	m.SearchFailures.Add(1)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "pharmascrape_images_downloaded_total 3")
	assert.Contains(t, body, "# TYPE pharmascrape_search_failures_total counter")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.ProductsResumed.Add(2)

	snap := m.Snapshot()
	require.Contains(t, snap, "products_resumed")
	assert.Equal(t, int64(2), snap["products_resumed"])
	assert.Equal(t, int64(0), snap["llm_calls"])
}
