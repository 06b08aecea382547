package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

func TestApplyCollectOverrides(t *testing.T) {
	t.Cleanup(func() {
		collectMaxPerKeyword, collectGenerated, collectDelay = 0, -1, ""
		collectKeywords = nil
		collectNoLocate, collectNoQuestions, collectNoProgress = false, false, false
	})

	cfg := config.DefaultConfig()
	collectMaxPerKeyword = 5
	collectGenerated = 0
	collectDelay = "250ms"
	collectKeywords = []string{"ho"}
	collectNoLocate = true
	collectNoProgress = true

	applyCollectOverrides(cfg)

	assert.Equal(t, 5, cfg.Collector.MaxProductsPerTerm)
	assert.False(t, cfg.Collector.ExpandKeywords)
	assert.Equal(t, 250*time.Millisecond, cfg.Collector.ProductDelay)
	assert.Equal(t, []string{"ho"}, cfg.Collector.SeedKeywords)
	assert.False(t, cfg.Collector.LocateProducts)
	assert.True(t, cfg.Collector.GenerateQuestions)
	assert.False(t, cfg.Collector.ShowProgress)
}

func TestSetupLogger(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "debug"
	assert.True(t, setupLogger(cfg).Enabled(context.Background(), slog.LevelDebug))

	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"
	logger := setupLogger(cfg)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	_, isJSON := logger.Handler().(*slog.JSONHandler)
	assert.True(t, isJSON)
}

func TestAnalyzerFor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OCR.AnalyzeDrugName = false
	assert.Nil(t, analyzerFor(cfg, nil))
}

func TestProductDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			_, _ = w.Write([]byte(`{"data":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"slug":"panadol","name":"Panadol <Extra>","price":12000}}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Catalog.APIBaseURL = srv.URL
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var out bytes.Buffer
	require.NoError(t, productDetail(context.Background(), cfg, logger, "panadol", &out))
	assert.JSONEq(t, `{"slug":"panadol","name":"Panadol <Extra>","price":12000}`, out.String())
	assert.Contains(t, out.String(), "<Extra>")

	out.Reset()
	err := productDetail(context.Background(), cfg, logger, "missing", &out)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Empty(t, out.String())
}
