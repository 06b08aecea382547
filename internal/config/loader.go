package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// A .env file in the working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("PHARMASCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare credential names used by the upstream services' own tooling.
	_ = v.BindEnv("llm.api_key", "PHARMASCRAPE_LLM_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("ocr.api_key", "PHARMASCRAPE_OCR_API_KEY", "OCR_SPACE_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pharmascrape")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".pharmascrape"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("catalog.api_base_url", cfg.Catalog.APIBaseURL)
	v.SetDefault("catalog.site_url", cfg.Catalog.SiteURL)
	v.SetDefault("catalog.platform", cfg.Catalog.Platform)
	v.SetDefault("catalog.order_by", cfg.Catalog.OrderBy)
	v.SetDefault("catalog.order", cfg.Catalog.Order)
	v.SetDefault("catalog.request_timeout", cfg.Catalog.RequestTimeout)
	v.SetDefault("catalog.user_agent", cfg.Catalog.UserAgent)
	v.SetDefault("catalog.max_body_size", cfg.Catalog.MaxBodySize)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.navigation_timeout", cfg.Browser.NavigationTimeout)
	v.SetDefault("browser.heading_selector", cfg.Browser.HeadingSelector)
	v.SetDefault("browser.heading_timeout", cfg.Browser.HeadingTimeout)
	v.SetDefault("browser.control_url", cfg.Browser.ControlURL)

	v.SetDefault("images.compression_enabled", cfg.Images.CompressionEnabled)
	v.SetDefault("images.quality", cfg.Images.Quality)
	v.SetDefault("images.download_timeout", cfg.Images.DownloadTimeout)
	v.SetDefault("images.delay", cfg.Images.Delay)
	v.SetDefault("images.max_size_mb", cfg.Images.MaxSizeMB)

	v.SetDefault("ocr.endpoint", cfg.OCR.Endpoint)
	v.SetDefault("ocr.api_key", cfg.OCR.APIKey)
	v.SetDefault("ocr.engine", cfg.OCR.Engine)
	v.SetDefault("ocr.language", cfg.OCR.Language)
	v.SetDefault("ocr.delay", cfg.OCR.Delay)
	v.SetDefault("ocr.download_timeout", cfg.OCR.DownloadTimeout)
	v.SetDefault("ocr.temp_dir", cfg.OCR.TempDir)
	v.SetDefault("ocr.use_image_dimensions", cfg.OCR.UseImageDimensions)
	v.SetDefault("ocr.analyze_drug_name", cfg.OCR.AnalyzeDrugName)

	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.endpoint", cfg.LLM.Endpoint)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)
	v.SetDefault("llm.temperature", cfg.LLM.Temperature)
	v.SetDefault("llm.call_delay", cfg.LLM.CallDelay)
	v.SetDefault("llm.max_retries", cfg.LLM.MaxRetries)
	v.SetDefault("llm.initial_backoff", cfg.LLM.InitialBackoff)
	v.SetDefault("llm.request_timeout", cfg.LLM.RequestTimeout)

	v.SetDefault("collector.seed_keywords", cfg.Collector.SeedKeywords)
	v.SetDefault("collector.generated_keywords", cfg.Collector.GeneratedKeywords)
	v.SetDefault("collector.max_products_per_term", cfg.Collector.MaxProductsPerTerm)
	v.SetDefault("collector.product_delay", cfg.Collector.ProductDelay)
	v.SetDefault("collector.category_sample_size", cfg.Collector.CategorySampleSize)
	v.SetDefault("collector.generate_questions", cfg.Collector.GenerateQuestions)
	v.SetDefault("collector.locate_products", cfg.Collector.LocateProducts)
	v.SetDefault("collector.expand_keywords", cfg.Collector.ExpandKeywords)
	v.SetDefault("collector.show_progress", cfg.Collector.ShowProgress)

	v.SetDefault("storage.output_dir", cfg.Storage.OutputDir)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
