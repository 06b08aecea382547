// Package scraper renders product pages and turns them into records.
package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/PharmaScrape/internal/catalog"
	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
	"github.com/IshaanNene/PharmaScrape/internal/parser"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Renderer returns the rendered DOM for a request. fetcher.BrowserFetcher is
// the production implementation.
type Renderer interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
}

var _ Renderer = (fetcher.Fetcher)(nil)

// Scraper produces ProductRecords from product pages.
type Scraper struct {
	renderer Renderer
	cfg      *config.Config
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates a Scraper.
func New(cfg *config.Config, renderer Renderer, metrics *observability.Metrics, logger *slog.Logger) *Scraper {
	return &Scraper{
		renderer: renderer,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With("component", "scraper"),
	}
}

// Scrape renders the page for slug and extracts a record.
//
// Navigation failure returns a nil record and the error. A page whose primary
// heading never appears still yields a record, with types.NotFound in every
// field that did not render.
func (s *Scraper) Scrape(ctx context.Context, slug string) (*types.ProductRecord, error) {
	pageURL := catalog.ProductPageURL(s.cfg.Catalog.SiteURL, slug)
	req, err := types.NewRequest(pageURL)
	if err != nil {
		return nil, err
	}
	req.Timeout = s.cfg.Browser.NavigationTimeout
	req.Meta[fetcher.MetaWaitSelector] = s.cfg.Browser.HeadingSelector
	req.Meta[fetcher.MetaWaitTimeout] = s.cfg.Browser.HeadingTimeout

	resp, err := s.renderer.Fetch(ctx, req)
	if err != nil {
		s.metrics.ProductsFailed.Add(1)
		return nil, fmt.Errorf("scrape %s: %w", slug, err)
	}

	rec, err := parser.ParseProduct(slug, string(resp.Body))
	if err != nil {
		s.logger.Warn("product page parse degraded", "slug", slug, "error", err)
	}

	s.metrics.ProductsScraped.Add(1)
	s.logger.Debug("product scraped",
		"slug", slug,
		"name", rec.Name,
		"images", len(rec.Images),
		"duration", resp.FetchDuration,
	)
	return rec, nil
}
