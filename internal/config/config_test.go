package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, 70, cfg.Images.Quality)
	assert.Equal(t, 50, cfg.Collector.MaxProductsPerTerm)
	assert.Equal(t, 20, cfg.Collector.GeneratedKeywords)
	assert.Equal(t, 100, cfg.Collector.CategorySampleSize)
	assert.Equal(t, 5*time.Second, cfg.OCR.Delay)
	assert.Equal(t, 300*time.Millisecond, cfg.Images.Delay)
	assert.Contains(t, cfg.Collector.SeedKeywords, "đau đầu")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"quality zero", func(c *Config) { c.Images.Quality = 0 }},
		{"quality too high", func(c *Config) { c.Images.Quality = 101 }},
		{"no seeds", func(c *Config) { c.Collector.SeedKeywords = nil }},
		{"bad provider", func(c *Config) { c.LLM.Provider = "bard" }},
		{"bad api url", func(c *Config) { c.Catalog.APIBaseURL = "ftp://example.com" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"no retries", func(c *Config) { c.LLM.MaxRetries = 0 }},
		{"negative delay", func(c *Config) { c.Collector.ProductDelay = -time.Second }},
		{"bad metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestRequireCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = ""
	err := RequireCredentials(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMissingCredential))

	cfg.LLM.APIKey = "k"
	assert.NoError(t, RequireCredentials(cfg))

	cfg.LLM.APIKey = ""
	cfg.LLM.Provider = "ollama"
	assert.NoError(t, RequireCredentials(cfg))
}

func TestOCRKeyFallback(t *testing.T) {
	c := OCRConfig{}
	key, fallback := c.OCRKey()
	assert.Equal(t, PublicOCRKey, key)
	assert.True(t, fallback)

	c.APIKey = "mine"
	key, fallback = c.OCRKey()
	assert.Equal(t, "mine", key)
	assert.False(t, fallback)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pharmascrape.yaml")
	content := []byte(`
images:
  quality: 55
collector:
  seed_keywords: ["ho", "sốt"]
  max_products_per_term: 10
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("PHARMASCRAPE_STORAGE_OUTPUT_DIR", filepath.Join(dir, "out"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 55, cfg.Images.Quality)
	assert.Equal(t, []string{"ho", "sốt"}, cfg.Collector.SeedKeywords)
	assert.Equal(t, 10, cfg.Collector.MaxProductsPerTerm)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.Storage.OutputDir)
	// untouched defaults survive
	assert.Equal(t, "h1.line-clamp-3", cfg.Browser.HeadingSelector)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
