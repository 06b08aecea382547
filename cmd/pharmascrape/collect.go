package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/PharmaScrape/internal/ai"
	"github.com/IshaanNene/PharmaScrape/internal/catalog"
	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/engine"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/media"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
	"github.com/IshaanNene/PharmaScrape/internal/ocr"
	"github.com/IshaanNene/PharmaScrape/internal/scraper"
	"github.com/IshaanNene/PharmaScrape/internal/storage"
)

var (
	collectMaxPerKeyword int
	collectGenerated     int
	collectDelay         string
	collectKeywords      []string
	collectNoLocate      bool
	collectNoQuestions   bool
	collectNoProgress    bool
)

// collectCmd creates the "collect" subcommand.
func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a full collection pass",
		Long: `Expand the keyword list, search the catalog for every keyword, and collect each
product found: detail page, images, bounding boxes and customer questions.

Output layout under the output directory:
  products/<slug>/data.json        one record per product
  products/<slug>/images/          image_<i>.jpg
  searches/<keyword>_<hash>.json   raw search page per keyword
  search_keywords.json             seed, generated and merged keywords
  drug_categories.json             category grouping of a product sample
  complete_dataset.json            every record plus run metadata

Requires an LLM API key (GEMINI_API_KEY) unless llm.provider is ollama or custom.`,
		RunE: runCollect,
	}

	cmd.Flags().IntVarP(&collectMaxPerKeyword, "max-per-keyword", "m", 0, "maximum products per keyword (0 = config default)")
	cmd.Flags().IntVar(&collectGenerated, "generate", -1, "number of keywords to generate (-1 = config default, 0 = none)")
	cmd.Flags().StringVar(&collectDelay, "delay", "", "delay between products")
	cmd.Flags().StringSliceVarP(&collectKeywords, "keyword", "k", nil, "seed keyword (repeatable; replaces the default list)")
	cmd.Flags().BoolVar(&collectNoLocate, "no-locate", false, "skip OCR bounding-box inference")
	cmd.Flags().BoolVar(&collectNoQuestions, "no-questions", false, "skip customer question generation")
	cmd.Flags().BoolVar(&collectNoProgress, "no-progress", false, "disable the progress bar")

	return cmd
}

func applyCollectOverrides(cfg *config.Config) {
	if collectMaxPerKeyword > 0 {
		cfg.Collector.MaxProductsPerTerm = collectMaxPerKeyword
	}
	if collectGenerated >= 0 {
		cfg.Collector.GeneratedKeywords = collectGenerated
		cfg.Collector.ExpandKeywords = collectGenerated > 0
	}
	if collectDelay != "" {
		if d, err := time.ParseDuration(collectDelay); err == nil {
			cfg.Collector.ProductDelay = d
		}
	}
	if len(collectKeywords) > 0 {
		cfg.Collector.SeedKeywords = collectKeywords
	}
	if collectNoLocate {
		cfg.Collector.LocateProducts = false
	}
	if collectNoQuestions {
		cfg.Collector.GenerateQuestions = false
	}
	if collectNoProgress {
		cfg.Collector.ShowProgress = false
	}
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCollectOverrides(cfg)
	logger := setupLogger(cfg)

	if err := config.RequireCredentials(cfg); err != nil {
		return err
	}
	if _, public := cfg.OCR.OCRKey(); public && cfg.Collector.LocateProducts {
		logger.Warn("OCR_SPACE_API_KEY not set, using the shared public OCR key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path)
	}

	if err := ocr.CleanTempDir(cfg.OCR.TempDir); err != nil {
		logger.Warn("could not clean OCR temp dir", "dir", cfg.OCR.TempDir, "error", err)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	httpFetcher := fetcher.NewHTTPFetcher(cfg, logger)
	defer httpFetcher.Close()

	browser, err := fetcher.NewBrowserFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer browser.Close()

	enricher := ai.NewEnricher(cfg, ai.NewLLMClient(cfg, httpFetcher, logger), metrics, logger)
	locator := ocr.NewEngine(cfg, ocr.NewClient(cfg, httpFetcher, metrics, logger), analyzerFor(cfg, enricher), httpFetcher, logger)

	var opts []engine.Option
	var progress *keywordProgress
	if cfg.Collector.ShowProgress {
		progress = newKeywordProgress()
		opts = append(opts, engine.WithProgress(progress.Func()))
	}

	collector, err := engine.NewCollector(cfg, engine.Deps{
		Searcher: catalog.NewClient(cfg, httpFetcher, metrics, logger),
		Scraper:  scraper.New(cfg, browser, metrics, logger),
		Images:   media.NewPipeline(cfg, metrics, logger),
		Locator:  locator,
		Enricher: enricher,
		Store:    store,
	}, metrics, logger, opts...)
	if err != nil {
		return err
	}

	logger.Info("starting collection",
		"seed_keywords", len(cfg.Collector.SeedKeywords),
		"generate", cfg.Collector.GeneratedKeywords,
		"output", cfg.Storage.OutputDir,
		"llm", cfg.LLM.Provider,
	)

	report, runErr := collector.Run(ctx)
	if progress != nil {
		progress.Finish()
	}
	if report == nil {
		return runErr
	}

	fmt.Printf("\n✅ Collection finished in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Printf("   Run:       %s\n", report.RunID)
	fmt.Printf("   Keywords:  %d searched, %d failed\n", report.Keywords, len(report.FailedKeywords))
	fmt.Printf("   Products:  %d total (%d scraped, %d reused, %d failed)\n", report.Products, report.Scraped, report.Resumed, report.Failed)
	fmt.Printf("   Images:    %d downloaded, %d skipped, %d failed\n",
		metrics.ImagesDownloaded.Load(), metrics.ImagesSkipped.Load(), metrics.ImagesFailed.Load())
	fmt.Printf("   LLM:       %d calls, %d retries, %d failed\n",
		metrics.LLMCalls.Load(), metrics.LLMRetries.Load(), metrics.LLMFailures.Load())
	fmt.Printf("   Output:    %s\n", cfg.Storage.OutputDir)

	return runErr
}

// openStore creates the file store and attaches the MongoDB mirror when configured.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.FileStore, error) {
	var sinks []storage.Sink
	if cfg.Storage.MongoURI != "" {
		sink, err := storage.NewMongoSink(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
		if err != nil {
			return nil, fmt.Errorf("open mongodb: %w", err)
		}
		sinks = append(sinks, sink)
	}
	store, err := storage.NewFileStore(cfg.Storage.OutputDir, logger, sinks...)
	if err != nil {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, fmt.Errorf("create storage: %w", err)
	}
	return store, nil
}

// analyzerFor returns the enricher as a drug-name analyzer when enabled.
func analyzerFor(cfg *config.Config, enricher *ai.Enricher) ocr.DrugAnalyzer {
	if !cfg.OCR.AnalyzeDrugName {
		return nil
	}
	return enricher
}
