package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/PharmaScrape/internal/ai"
	"github.com/IshaanNene/PharmaScrape/internal/catalog"
	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
	"github.com/IshaanNene/PharmaScrape/internal/ocr"
	"github.com/IshaanNene/PharmaScrape/internal/pipeline"
	"github.com/IshaanNene/PharmaScrape/internal/scraper"
)

var (
	searchLimit int
	searchPage  int
	locateHint  string
	scrapeAPI   bool
)

// searchCmd creates the "search" subcommand.
func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Query the catalog for one keyword and print the result page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			f := fetcher.NewHTTPFetcher(cfg, logger)
			defer f.Close()

			client := catalog.NewClient(cfg, f, observability.NewMetrics(logger), logger)
			page, err := client.Search(ctx, args[0], searchPage, searchLimit)
			if err != nil {
				logger.Error("search failed", "keyword", args[0], "error", err)
			}
			return printJSON(page)
		},
	}
	cmd.Flags().IntVar(&searchLimit, "limit", 20, "page size")
	cmd.Flags().IntVar(&searchPage, "page", 1, "page index")
	return cmd
}

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <slug>",
		Short: "Render one product page and print the extracted record",
		Long: `Render one product page and print the extracted record.

With --api the rendered page is skipped and the catalog's JSON detail record
for the slug is printed as returned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if scrapeAPI {
				return productDetail(ctx, cfg, logger, args[0], os.Stdout)
			}

			browser, err := fetcher.NewBrowserFetcher(cfg, logger)
			if err != nil {
				return fmt.Errorf("start browser: %w", err)
			}
			defer browser.Close()

			rec, err := scraper.New(cfg, browser, observability.NewMetrics(logger), logger).Scrape(ctx, args[0])
			if err != nil {
				return err
			}
			rec, err = pipeline.Default(logger).Process(rec)
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
	cmd.Flags().BoolVar(&scrapeAPI, "api", false, "print the catalog JSON detail record instead of rendering the page")
	return cmd
}

// productDetail writes the catalog's JSON detail record for slug to w.
func productDetail(ctx context.Context, cfg *config.Config, logger *slog.Logger, slug string, w io.Writer) error {
	f := fetcher.NewHTTPFetcher(cfg, logger)
	defer f.Close()

	raw, err := catalog.NewClient(cfg, f, observability.NewMetrics(logger), logger).Product(ctx, slug)
	if err != nil {
		return err
	}
	return writeJSON(w, raw)
}

// locateCmd creates the "locate" subcommand.
func locateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate <image-url>...",
		Short: "Infer product bounding boxes for images via OCR",
		Long: `Download each image, run OCR on it and print the inferred product box.

Without an LLM key the drug name is not read from the OCR text; pass --hint
with the product name to steer line matching instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, u := range args {
				if err := config.ValidateURL(u); err != nil {
					return fmt.Errorf("invalid URL %q: %w", u, err)
				}
			}
			logger := setupLogger(cfg)
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			f := fetcher.NewHTTPFetcher(cfg, logger)
			defer f.Close()
			metrics := observability.NewMetrics(logger)

			var analyzer ocr.DrugAnalyzer
			if cfg.OCR.AnalyzeDrugName && config.RequireCredentials(cfg) == nil {
				analyzer = ai.NewEnricher(cfg, ai.NewLLMClient(cfg, f, logger), metrics, logger)
			}

			if err := ocr.CleanTempDir(cfg.OCR.TempDir); err != nil {
				logger.Warn("could not clean OCR temp dir", "dir", cfg.OCR.TempDir, "error", err)
			}
			engine := ocr.NewEngine(cfg, ocr.NewClient(cfg, f, metrics, logger), analyzer, f, logger)
			return printJSON(engine.Locate(ctx, args, locateHint))
		},
	}
	cmd.Flags().StringVar(&locateHint, "hint", "", "product name used when the OCR text yields none")
	return cmd
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
