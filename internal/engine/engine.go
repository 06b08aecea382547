// Package engine drives a collection run: keyword expansion, search, per-product
// scraping and enrichment, and the run-level artifacts.
package engine

import (
	"context"
	"time"

	"github.com/IshaanNene/PharmaScrape/internal/media"
	"github.com/IshaanNene/PharmaScrape/internal/storage"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// KeywordState is the lifecycle of one keyword within a run.
type KeywordState int32

const (
	KeywordPending   KeywordState = 0
	KeywordSearching KeywordState = 1
	KeywordSucceeded KeywordState = 2
	KeywordFailed    KeywordState = 3
)

func (s KeywordState) String() string {
	switch s {
	case KeywordPending:
		return "pending"
	case KeywordSearching:
		return "searching"
	case KeywordSucceeded:
		return "succeeded"
	case KeywordFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProductState is the lifecycle of one search hit within a run.
type ProductState int32

const (
	ProductDiscovered       ProductState = 0
	ProductAlreadyProcessed ProductState = 1
	ProductAlreadyPersisted ProductState = 2
	ProductScraping         ProductState = 3
	ProductScraped          ProductState = 4
	ProductEnriching        ProductState = 5
	ProductPersisted        ProductState = 6
	ProductScrapeFailed     ProductState = 7
	ProductDropped          ProductState = 8
)

func (s ProductState) String() string {
	switch s {
	case ProductDiscovered:
		return "discovered"
	case ProductAlreadyProcessed:
		return "already_processed"
	case ProductAlreadyPersisted:
		return "already_persisted"
	case ProductScraping:
		return "scraping"
	case ProductScraped:
		return "scraped"
	case ProductEnriching:
		return "enriching"
	case ProductPersisted:
		return "persisted"
	case ProductScrapeFailed:
		return "scrape_failed"
	case ProductDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Searcher runs a keyword query against the catalog.
type Searcher interface {
	Search(ctx context.Context, keyword string, page, limit int) (*types.SearchResultPage, error)
}

// Scraper turns a slug into a product record.
type Scraper interface {
	Scrape(ctx context.Context, slug string) (*types.ProductRecord, error)
}

// ImageStore downloads a product's images into its directory.
type ImageStore interface {
	FetchAndStore(ctx context.Context, urls []string, productDir string) []media.Outcome
}

// Locator infers a product bounding box for each image.
type Locator interface {
	Locate(ctx context.Context, urls []string, hint string) []types.Location
}

// Enricher is the language-model side of a run.
type Enricher interface {
	ExpandKeywords(ctx context.Context, seed []string, count int) []string
	Categorize(ctx context.Context, descriptions []string) map[string][]int
	GenerateQuestions(ctx context.Context, p *types.ProductRecord) []string
}

// Pipeline normalises a record before it is persisted. A nil record means drop.
type Pipeline interface {
	Process(rec *types.ProductRecord) (*types.ProductRecord, error)
}

// Store is the persisted product tree plus the run-level artifacts.
type Store interface {
	Exists(slug string) bool
	Load(slug string) (*types.ProductRecord, error)
	Save(ctx context.Context, rec *types.ProductRecord) error
	ProductDir(slug string) string
	SaveSearch(keyword string, page *types.SearchResultPage) (string, error)
	SaveKeywords(kf *storage.KeywordFile) error
	SaveCategories(cf *storage.CategoryFile) error
	SaveDataset(ds *storage.Dataset) error
}

// Report summarises a finished run.
type Report struct {
	RunID          string        `json:"run_id"`
	Keywords       int           `json:"keywords"`
	FailedKeywords []string      `json:"failed_keywords"`
	Products       int           `json:"products"`
	Scraped        int           `json:"scraped"`
	Resumed        int           `json:"resumed"`
	Deduped        int           `json:"deduped"`
	Failed         int           `json:"failed"`
	Dropped        int           `json:"dropped"`
	Categories     int           `json:"categories"`
	Duration       time.Duration `json:"duration"`
}

// Snapshot returns the report as loggable key/value pairs.
func (r *Report) Snapshot() []any {
	return []any{
		"run_id", r.RunID,
		"keywords", r.Keywords,
		"failed_keywords", len(r.FailedKeywords),
		"products", r.Products,
		"scraped", r.Scraped,
		"resumed", r.Resumed,
		"deduped", r.Deduped,
		"failed", r.Failed,
		"dropped", r.Dropped,
		"categories", r.Categories,
		"elapsed", r.Duration.Round(time.Millisecond).String(),
	}
}

// ProgressFunc is called after each keyword finishes.
type ProgressFunc func(done, total int, keyword string)
