package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/PharmaScrape/internal/config"
)

var (
	cfgFile    string
	verbose    bool
	logFormat  string
	outputPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pharmascrape",
		Short: "PharmaScrape: pharmacy catalog collector",
		Long: `PharmaScrape builds a local product dataset from an online pharmacy catalog.

A collection run:
  • Expands the seed keyword list with a language model
  • Searches the catalog for each keyword
  • Renders each product page in a headless browser and extracts its fields
  • Downloads and compresses product images
  • Infers a product bounding box per image from OCR text
  • Generates customer questions and groups products into categories

Records already on disk are reused, so an interrupted run can simply be restarted.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json (default from config)")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "output directory (default from config)")

	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(locateCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates configuration, then applies global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if outputPath != "" {
		cfg.Storage.OutputDir = outputPath
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("PharmaScrape %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, publicOCR := cfg.OCR.OCRKey()
			fmt.Printf("Catalog:\n")
			fmt.Printf("  API:               %s\n", cfg.Catalog.APIBaseURL)
			fmt.Printf("  Site:              %s\n", cfg.Catalog.SiteURL)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Catalog.RequestTimeout)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Heading Timeout:   %s\n", cfg.Browser.HeadingTimeout)
			fmt.Printf("\nImages:\n")
			fmt.Printf("  Compression:       %v (quality %d)\n", cfg.Images.CompressionEnabled, cfg.Images.Quality)
			fmt.Printf("\nOCR:\n")
			fmt.Printf("  Endpoint:          %s\n", cfg.OCR.Endpoint)
			fmt.Printf("  Public Key:        %v\n", publicOCR)
			fmt.Printf("  Delay:             %s\n", cfg.OCR.Delay)
			fmt.Printf("  Real Dimensions:   %v\n", cfg.OCR.UseImageDimensions)
			fmt.Printf("\nLLM:\n")
			fmt.Printf("  Provider:          %s\n", cfg.LLM.Provider)
			fmt.Printf("  Model:             %s\n", cfg.LLM.Model)
			fmt.Printf("  API Key Set:       %v\n", cfg.LLM.APIKey != "")
			fmt.Printf("  Call Delay:        %s\n", cfg.LLM.CallDelay)
			fmt.Printf("  Max Retries:       %d\n", cfg.LLM.MaxRetries)
			fmt.Printf("\nCollector:\n")
			fmt.Printf("  Seed Keywords:     %d\n", len(cfg.Collector.SeedKeywords))
			fmt.Printf("  Generated:         %d\n", cfg.Collector.GeneratedKeywords)
			fmt.Printf("  Per Keyword:       %d\n", cfg.Collector.MaxProductsPerTerm)
			fmt.Printf("  Product Delay:     %s\n", cfg.Collector.ProductDelay)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Output:            %s\n", cfg.Storage.OutputDir)
			fmt.Printf("  MongoDB:           %v\n", cfg.Storage.MongoURI != "")
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
