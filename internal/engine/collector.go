package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/PharmaScrape/internal/ai"
	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
	"github.com/IshaanNene/PharmaScrape/internal/pipeline"
	"github.com/IshaanNene/PharmaScrape/internal/storage"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Deps are the collaborators a Collector drives. Searcher, Scraper and Store
// are required; a nil Images, Locator or Enricher disables that stage.
type Deps struct {
	Searcher Searcher
	Scraper  Scraper
	Images   ImageStore
	Locator  Locator
	Enricher Enricher
	Pipeline Pipeline
	Store    Store
}

// Option configures a Collector.
type Option func(*Collector)

// WithProgress registers a callback invoked after each keyword.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Collector) { c.progress = fn }
}

// WithRand sets the source used to sample products for categorisation.
func WithRand(r *rand.Rand) Option {
	return func(c *Collector) { c.rng = r }
}

// Collector runs one collection pass. Keywords and products are handled one
// at a time in search order.
type Collector struct {
	cfg      *config.CollectorConfig
	deps     Deps
	dedup    *SlugSet
	pacer    *rate.Limiter
	rng      *rand.Rand
	progress ProgressFunc
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewCollector wires a Collector. A nil Pipeline gets the default chain.
func NewCollector(cfg *config.Config, deps Deps, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) (*Collector, error) {
	switch {
	case deps.Searcher == nil:
		return nil, errors.New("collector: searcher is required")
	case deps.Scraper == nil:
		return nil, errors.New("collector: scraper is required")
	case deps.Store == nil:
		return nil, errors.New("collector: store is required")
	}
	if deps.Pipeline == nil {
		deps.Pipeline = pipeline.Default(logger)
	}
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}

	c := &Collector{
		cfg:     &cfg.Collector,
		deps:    deps,
		dedup:   NewSlugSet(cfg.Collector.MaxProductsPerTerm * 8),
		pacer:   fetcher.NewPacer(cfg.Collector.ProductDelay),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		metrics: metrics,
		logger:  logger.With("component", "collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Seen exposes the run's dedup ledger.
func (c *Collector) Seen() *SlugSet { return c.dedup }

// Run expands the keyword list, collects every search hit, then writes the
// category sample and the aggregate dataset. Per-item failures are logged
// and skipped; only store failures on run-level artifacts abort the run.
// A cancelled ctx stops the keyword loop early but the dataset for what was
// collected is still written.
func (c *Collector) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString(), FailedKeywords: []string{}}
	logger := c.logger.With("run_id", report.RunID)

	keywords, err := c.prepareKeywords(ctx)
	if err != nil {
		return report, err
	}
	report.Keywords = len(keywords)
	logger.Info("collection started", "keywords", len(keywords), "max_per_keyword", c.cfg.MaxProductsPerTerm)

	var products []*types.ProductRecord
	for i, kw := range keywords {
		if ctx.Err() != nil {
			logger.Warn("collection interrupted", "remaining_keywords", len(keywords)-i)
			break
		}

		state, found := c.collectKeyword(ctx, kw, report)
		if state == KeywordFailed {
			report.FailedKeywords = append(report.FailedKeywords, kw)
		}
		products = append(products, found...)

		if c.progress != nil {
			c.progress(i+1, len(keywords), kw)
		}
	}

	if ctx.Err() == nil {
		report.Categories = c.categorize(ctx, products)
	}

	report.Products = len(products)
	report.Duration = time.Since(start)

	if products == nil {
		products = []*types.ProductRecord{}
	}
	ds := &storage.Dataset{
		Metadata: storage.DatasetMetadata{
			RunID:                report.RunID,
			TotalProducts:        len(products),
			TotalKeywords:        len(keywords),
			FailedKeywords:       report.FailedKeywords,
			CollectionDate:       start.UTC(),
			ExecutionTimeSeconds: report.Duration.Seconds(),
		},
		Keywords: keywords,
		Products: products,
	}
	if err := c.deps.Store.SaveDataset(ds); err != nil {
		return report, fmt.Errorf("write dataset: %w", err)
	}

	logger.Info("collection finished", report.Snapshot()...)
	return report, ctx.Err()
}

// prepareKeywords merges the seeds with one round of generated keywords and
// records the result.
func (c *Collector) prepareKeywords(ctx context.Context) ([]string, error) {
	seed := ai.MergeKeywords(c.cfg.SeedKeywords)
	generated := []string{}
	if c.cfg.ExpandKeywords && c.deps.Enricher != nil && c.cfg.GeneratedKeywords > 0 {
		generated = c.deps.Enricher.ExpandKeywords(ctx, seed, c.cfg.GeneratedKeywords)
		c.logger.Info("keywords generated", "count", len(generated))
	}

	all := ai.MergeKeywords(seed, generated)
	if err := c.deps.Store.SaveKeywords(&storage.KeywordFile{
		SeedKeywords:      seed,
		GeneratedKeywords: generated,
		AllKeywords:       all,
	}); err != nil {
		return nil, fmt.Errorf("write keywords: %w", err)
	}
	return all, nil
}

func (c *Collector) collectKeyword(ctx context.Context, kw string, report *Report) (KeywordState, []*types.ProductRecord) {
	logger := c.logger.With("keyword", kw)
	logger.Debug("keyword state", "state", KeywordPending.String())
	logger.Debug("keyword state", "state", KeywordSearching.String())

	page, err := c.deps.Searcher.Search(ctx, kw, 1, c.cfg.MaxProductsPerTerm)
	if page == nil {
		page = types.EmptyPage()
	}
	if path, serr := c.deps.Store.SaveSearch(kw, page); serr != nil {
		logger.Error("search audit write failed", "error", serr)
	} else {
		logger.Debug("search audit written", "path", path)
	}
	if err != nil {
		logger.Warn("search failed", "error", err)
		return KeywordFailed, nil
	}

	items := page.Items
	if c.cfg.MaxProductsPerTerm > 0 && len(items) > c.cfg.MaxProductsPerTerm {
		items = items[:c.cfg.MaxProductsPerTerm]
	}
	logger.Info("search completed", "total", page.Total, "items", len(items))

	var found []*types.ProductRecord
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		ps, rec := c.collectProduct(ctx, kw, &items[i])
		switch ps {
		case ProductPersisted:
			report.Scraped++
		case ProductAlreadyPersisted:
			report.Resumed++
		case ProductAlreadyProcessed:
			report.Deduped++
		case ProductScrapeFailed:
			report.Failed++
		case ProductDropped:
			report.Dropped++
		}
		if rec != nil {
			found = append(found, rec)
		}
	}
	return KeywordSucceeded, found
}

// collectProduct walks one search hit through the product states and returns
// the record to include in the dataset, if any.
func (c *Collector) collectProduct(ctx context.Context, kw string, item *types.SearchItem) (ProductState, *types.ProductRecord) {
	slug := canonicalSlug(item.Slug)
	logger := c.logger.With("keyword", kw, "slug", slug)
	logger.Debug("product state", "state", ProductDiscovered.String())

	if err := storage.ValidSlug(slug); err != nil {
		logger.Warn("search hit has unusable slug", "error", err)
		return ProductDropped, nil
	}

	if c.dedup.Has(slug) {
		c.metrics.ProductsDeduped.Add(1)
		logger.Debug("product already processed this run")
		return ProductAlreadyProcessed, nil
	}

	if c.deps.Store.Exists(slug) {
		rec, err := c.deps.Store.Load(slug)
		if err == nil {
			c.dedup.Add(slug)
			c.metrics.ProductsResumed.Add(1)
			logger.Info("product already collected, reusing record")
			return ProductAlreadyPersisted, rec
		}
		logger.Warn("persisted record unreadable, collecting again", "error", err)
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return ProductScrapeFailed, nil
	}

	logger.Debug("product state", "state", ProductScraping.String())
	rec, err := c.deps.Scraper.Scrape(ctx, slug)
	if err != nil || rec == nil {
		logger.Warn("scrape failed", "error", err)
		return ProductScrapeFailed, nil
	}
	logger.Debug("product state", "state", ProductScraped.String())
	rec.SearchMetadata = item.Metadata(kw)

	rec, err = c.deps.Pipeline.Process(rec)
	if err != nil {
		logger.Warn("record rejected", "error", err)
		return ProductDropped, nil
	}
	if rec == nil {
		logger.Warn("record dropped by pipeline")
		return ProductDropped, nil
	}

	logger.Debug("product state", "state", ProductEnriching.String())
	c.enrich(ctx, rec)

	if err := c.deps.Store.Save(ctx, rec); err != nil {
		logger.Error("persist failed", "error", err)
		return ProductScrapeFailed, nil
	}
	c.dedup.Add(slug)
	c.metrics.ProductsPersisted.Add(1)
	logger.Info("product collected",
		"images", len(rec.Images),
		"locations", len(rec.OCRLocations),
		"questions", len(rec.ChatbotQuestions),
	)
	return ProductPersisted, rec
}

func (c *Collector) enrich(ctx context.Context, rec *types.ProductRecord) {
	if len(rec.Images) > 0 && c.deps.Images != nil {
		c.deps.Images.FetchAndStore(ctx, rec.Images, c.deps.Store.ProductDir(rec.Slug))
	}
	if len(rec.Images) > 0 && c.deps.Locator != nil && c.cfg.LocateProducts {
		rec.OCRLocations = c.deps.Locator.Locate(ctx, rec.Images, nameHint(rec))
	}
	if c.deps.Enricher != nil && c.cfg.GenerateQuestions {
		if qs := c.deps.Enricher.GenerateQuestions(ctx, rec); len(qs) > 0 {
			rec.ChatbotQuestions = qs
		}
	}
}

// categorize groups a random sample of the collected products and writes the
// category file. It returns the number of categories found.
func (c *Collector) categorize(ctx context.Context, products []*types.ProductRecord) int {
	if c.deps.Enricher == nil || len(products) == 0 {
		return 0
	}

	sample := c.sample(products)
	descriptions := make([]string, len(sample))
	for i, p := range sample {
		descriptions[i] = p.Text()
	}

	categories := c.deps.Enricher.Categorize(ctx, descriptions)
	if err := c.deps.Store.SaveCategories(storage.NewCategoryFile(categories, sample)); err != nil {
		c.logger.Error("category write failed", "error", err)
	}
	c.logger.Info("products categorised", "sample", len(sample), "categories", len(categories))
	return len(categories)
}

// sample returns up to CategorySampleSize products chosen without replacement.
func (c *Collector) sample(products []*types.ProductRecord) []*types.ProductRecord {
	n := c.cfg.CategorySampleSize
	if n <= 0 || n >= len(products) {
		out := make([]*types.ProductRecord, len(products))
		copy(out, products)
		return out
	}
	out := make([]*types.ProductRecord, 0, n)
	for _, idx := range c.rng.Perm(len(products))[:n] {
		out = append(out, products[idx])
	}
	return out
}

func nameHint(rec *types.ProductRecord) string {
	name := strings.TrimSpace(rec.Name)
	if name == types.NotFound {
		return ""
	}
	return name
}
