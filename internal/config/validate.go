package config

import (
	"fmt"
	"net/url"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Catalog.APIBaseURL); err != nil {
		return fmt.Errorf("catalog.api_base_url: %w", err)
	}
	if err := ValidateURL(cfg.Catalog.SiteURL); err != nil {
		return fmt.Errorf("catalog.site_url: %w", err)
	}
	if cfg.Catalog.RequestTimeout <= 0 {
		return fmt.Errorf("catalog.request_timeout must be > 0")
	}
	if cfg.Catalog.MaxBodySize <= 0 {
		return fmt.Errorf("catalog.max_body_size must be > 0")
	}

	if cfg.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	if cfg.Browser.HeadingTimeout < 0 {
		return fmt.Errorf("browser.heading_timeout must be >= 0")
	}

	if cfg.Images.Quality < 1 || cfg.Images.Quality > 100 {
		return fmt.Errorf("images.quality must be 1-100, got %d", cfg.Images.Quality)
	}
	if cfg.Images.DownloadTimeout <= 0 {
		return fmt.Errorf("images.download_timeout must be > 0")
	}
	if cfg.Images.Delay < 0 {
		return fmt.Errorf("images.delay must be >= 0")
	}

	if cfg.OCR.Engine < 1 || cfg.OCR.Engine > 3 {
		return fmt.Errorf("ocr.engine must be 1, 2 or 3, got %d", cfg.OCR.Engine)
	}
	if cfg.OCR.Delay < 0 {
		return fmt.Errorf("ocr.delay must be >= 0")
	}

	validProviders := map[string]bool{
		"gemini": true, "openai": true, "ollama": true, "custom": true,
	}
	if !validProviders[cfg.LLM.Provider] {
		return fmt.Errorf("llm.provider %q is not supported (valid: gemini, openai, ollama, custom)", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxRetries < 1 {
		return fmt.Errorf("llm.max_retries must be >= 1, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.LLM.CallDelay < 0 || cfg.LLM.InitialBackoff < 0 {
		return fmt.Errorf("llm delays must be >= 0")
	}

	if len(cfg.Collector.SeedKeywords) == 0 {
		return fmt.Errorf("collector.seed_keywords must not be empty")
	}
	if cfg.Collector.MaxProductsPerTerm < 1 {
		return fmt.Errorf("collector.max_products_per_term must be >= 1, got %d", cfg.Collector.MaxProductsPerTerm)
	}
	if cfg.Collector.GeneratedKeywords < 0 {
		return fmt.Errorf("collector.generated_keywords must be >= 0")
	}
	if cfg.Collector.CategorySampleSize < 0 {
		return fmt.Errorf("collector.category_sample_size must be >= 0")
	}
	if cfg.Collector.ProductDelay < 0 {
		return fmt.Errorf("collector.product_delay must be >= 0")
	}

	if cfg.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// RequireCredentials fails fast when the run needs a collaborator whose key is absent.
// The OCR key falls back to the shared public key, which is logged by the caller.
func RequireCredentials(cfg *Config) error {
	if cfg.LLM.Provider == "gemini" || cfg.LLM.Provider == "openai" {
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key (GEMINI_API_KEY) for provider %q: %w", cfg.LLM.Provider, types.ErrMissingCredential)
		}
	}
	return nil
}

// OCRKey returns the configured OCR key and whether the public fallback was used.
func (c *OCRConfig) OCRKey() (string, bool) {
	if c.APIKey != "" {
		return c.APIKey, false
	}
	return PublicOCRKey, true
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
