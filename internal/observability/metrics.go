package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for a collection run.
type Metrics struct {
	// Catalog metrics
	SearchRequests atomic.Int64
	SearchFailures atomic.Int64

	// Product metrics
	ProductsScraped   atomic.Int64
	ProductsDeduped   atomic.Int64
	ProductsResumed   atomic.Int64
	ProductsFailed    atomic.Int64
	ProductsPersisted atomic.Int64

	// Image metrics
	ImagesDownloaded atomic.Int64
	ImagesSkipped    atomic.Int64
	ImagesFailed     atomic.Int64
	ImagesCompressed atomic.Int64
	BytesDownloaded  atomic.Int64
	BytesSaved       atomic.Int64

	// Collaborator metrics
	OCRRequests atomic.Int64
	OCRFailures atomic.Int64
	LLMCalls    atomic.Int64
	LLMRetries  atomic.Int64
	LLMFailures atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

type metric struct {
	name  string
	help  string
	value int64
}

func (m *Metrics) all() []metric {
	return []metric{
		{"pharmascrape_search_requests_total", "Total catalog searches issued", m.SearchRequests.Load()},
		{"pharmascrape_search_failures_total", "Total catalog searches that failed", m.SearchFailures.Load()},
		{"pharmascrape_products_scraped_total", "Total product pages scraped", m.ProductsScraped.Load()},
		{"pharmascrape_products_deduped_total", "Total products skipped as already processed this run", m.ProductsDeduped.Load()},
		{"pharmascrape_products_resumed_total", "Total products loaded from disk instead of scraped", m.ProductsResumed.Load()},
		{"pharmascrape_products_failed_total", "Total products whose scrape failed", m.ProductsFailed.Load()},
		{"pharmascrape_products_persisted_total", "Total product records written", m.ProductsPersisted.Load()},
		{"pharmascrape_images_downloaded_total", "Total images downloaded", m.ImagesDownloaded.Load()},
		{"pharmascrape_images_skipped_total", "Total images already on disk", m.ImagesSkipped.Load()},
		{"pharmascrape_images_failed_total", "Total image downloads that failed", m.ImagesFailed.Load()},
		{"pharmascrape_images_compressed_total", "Total images re-encoded", m.ImagesCompressed.Load()},
		{"pharmascrape_bytes_downloaded_total", "Total image bytes downloaded", m.BytesDownloaded.Load()},
		{"pharmascrape_bytes_saved_total", "Total bytes saved by compression", m.BytesSaved.Load()},
		{"pharmascrape_ocr_requests_total", "Total OCR requests", m.OCRRequests.Load()},
		{"pharmascrape_ocr_failures_total", "Total OCR requests that failed", m.OCRFailures.Load()},
		{"pharmascrape_llm_calls_total", "Total language model calls", m.LLMCalls.Load()},
		{"pharmascrape_llm_retries_total", "Total language model retries", m.LLMRetries.Load()},
		{"pharmascrape_llm_failures_total", "Total language model calls that failed after retries", m.LLMFailures.Load()},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, metric := range m.all() {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server and stops it when ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Snapshot returns all metrics as a map keyed without the namespace prefix.
func (m *Metrics) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	for _, metric := range m.all() {
		name := strings.TrimSuffix(strings.TrimPrefix(metric.name, "pharmascrape_"), "_total")
		out[name] = metric.value
	}
	return out
}
