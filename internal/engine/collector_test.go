package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/media"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
	"github.com/IshaanNene/PharmaScrape/internal/storage"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSearcher struct {
	results map[string][]string
	errs    map[string]error
	calls   []string
}

func (f *fakeSearcher) Search(_ context.Context, keyword string, _, _ int) (*types.SearchResultPage, error) {
	f.calls = append(f.calls, keyword)
	if err := f.errs[keyword]; err != nil {
		return types.EmptyPage(), err
	}
	page := types.EmptyPage()
	for _, slug := range f.results[keyword] {
		page.Items = append(page.Items, types.SearchItem{Slug: slug, Name: "Product " + slug, SKU: "P" + slug, IsDrug: true})
	}
	page.Total = len(page.Items)
	return page, nil
}

type fakeScraper struct {
	calls map[string]int
	errs  map[string]error
}

func (f *fakeScraper) Scrape(_ context.Context, slug string) (*types.ProductRecord, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[slug]++
	if err := f.errs[slug]; err != nil {
		return nil, err
	}
	rec := types.NewProductRecord(slug)
	rec.Name = "Product " + slug
	rec.Description = "Mô tả " + slug
	rec.Images = []string{"https://cdn.test/" + slug + "/P" + slug + "_1.jpg"}
	return rec, nil
}

type fakeImages struct {
	dirs []string
}

func (f *fakeImages) FetchAndStore(_ context.Context, urls []string, productDir string) []media.Outcome {
	f.dirs = append(f.dirs, productDir)
	out := make([]media.Outcome, len(urls))
	for i, u := range urls {
		out[i] = media.Outcome{Index: i, URL: u, Path: media.ImagePath(productDir, i), Status: media.StatusDownloaded}
	}
	return out
}

type fakeLocator struct {
	hints []string
}

func (f *fakeLocator) Locate(_ context.Context, urls []string, hint string) []types.Location {
	f.hints = append(f.hints, hint)
	locs := make([]types.Location, len(urls))
	for i, u := range urls {
		locs[i] = types.Location{ImageIndex: i, URL: u, Box: types.DefaultBox(), Success: true}
	}
	return locs
}

type fakeEnricher struct {
	generated    []string
	descriptions []string
	categories   map[string][]int
}

func (f *fakeEnricher) ExpandKeywords(context.Context, []string, int) []string {
	return f.generated
}

func (f *fakeEnricher) Categorize(_ context.Context, descriptions []string) map[string][]int {
	f.descriptions = descriptions
	return f.categories
}

func (f *fakeEnricher) GenerateQuestions(_ context.Context, p *types.ProductRecord) []string {
	return []string{p.Name + " dùng để làm gì?"}
}

type fixture struct {
	cfg      *config.Config
	root     string
	store    *storage.FileStore
	searcher *fakeSearcher
	scraper  *fakeScraper
	images   *fakeImages
	locator  *fakeLocator
	enricher *fakeEnricher
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, root string) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Collector.SeedKeywords = []string{"ho", "sốt"}
	cfg.Collector.GeneratedKeywords = 2
	cfg.Collector.ProductDelay = 0

	store, err := storage.NewFileStore(root, testLogger)
	require.NoError(t, err)

	return &fixture{
		cfg:   cfg,
		root:  root,
		store: store,
		searcher: &fakeSearcher{results: map[string][]string{
			"ho":      {"a", "b"},
			"sốt":     {"b", "c"},
			"cảm cúm": {"a"},
		}},
		scraper:  &fakeScraper{},
		images:   &fakeImages{},
		locator:  &fakeLocator{},
		enricher: &fakeEnricher{generated: []string{"cảm cúm", "ho"}, categories: map[string][]int{"Hô hấp": {0, 1}}},
		metrics:  observability.NewMetrics(testLogger),
	}
}

func (f *fixture) collector(t *testing.T, opts ...Option) *Collector {
	t.Helper()
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	c, err := NewCollector(f.cfg, Deps{
		Searcher: f.searcher,
		Scraper:  f.scraper,
		Images:   f.images,
		Locator:  f.locator,
		Enricher: f.enricher,
		Store:    f.store,
	}, f.metrics, testLogger, opts...)
	require.NoError(t, err)
	return c
}

func readDataset(t *testing.T, root string) storage.Dataset {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "complete_dataset.json"))
	require.NoError(t, err)
	var ds storage.Dataset
	require.NoError(t, json.Unmarshal(data, &ds))
	return ds
}

func TestCollectorRun(t *testing.T) {
	f := newFixture(t, t.TempDir())
	c := f.collector(t)
	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ho", "sốt", "cảm cúm"}, f.searcher.calls)
	assert.Equal(t, []string{"a", "b", "c"}, c.Seen().Export())
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, f.scraper.calls)
	assert.Equal(t, 3, report.Keywords)
	assert.Equal(t, 3, report.Products)
	assert.Equal(t, 3, report.Scraped)
	assert.Equal(t, 2, report.Deduped)
	assert.Empty(t, report.FailedKeywords)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, int64(2), f.metrics.ProductsDeduped.Load())
	assert.Equal(t, int64(3), f.metrics.ProductsPersisted.Load())

	assert.Equal(t, []string{f.store.ProductDir("a"), f.store.ProductDir("b"), f.store.ProductDir("c")}, f.images.dirs)
	assert.Equal(t, []string{"Product a", "Product b", "Product c"}, f.locator.hints)

	rec, err := f.store.Load("b")
	require.NoError(t, err)
	require.NotNil(t, rec.SearchMetadata)
	assert.Equal(t, "ho", rec.SearchMetadata.MatchedKeyword)
	assert.Equal(t, "Pb", rec.SearchMetadata.SKU)
	assert.Len(t, rec.OCRLocations, 1)
	assert.Equal(t, []string{"Product b dùng để làm gì?"}, rec.ChatbotQuestions)

	ds := readDataset(t, f.root)
	assert.Equal(t, report.RunID, ds.Metadata.RunID)
	assert.Equal(t, 3, ds.Metadata.TotalProducts)
	assert.Equal(t, 3, ds.Metadata.TotalKeywords)
	assert.Equal(t, []string{"ho", "sốt", "cảm cúm"}, ds.Keywords)

	assert.FileExists(t, filepath.Join(f.root, "search_keywords.json"))
	assert.FileExists(t, filepath.Join(f.root, "drug_categories.json"))
	assert.FileExists(t, filepath.Join(f.root, "searches", storage.SanitizeKeyword("ho")+".json"))
	assert.Len(t, f.enricher.descriptions, 3)
	assert.Equal(t, 1, report.Categories)
}

func TestCollectorRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	first := newFixture(t, root)
	_, err := first.collector(t).Run(context.Background())
	require.NoError(t, err)

	second := newFixture(t, root)
	report, err := second.collector(t).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, second.scraper.calls, "persisted products must not be scraped again")
	assert.Empty(t, second.images.dirs, "persisted products must not be downloaded again")
	assert.Equal(t, 3, report.Resumed)
	assert.Equal(t, 0, report.Scraped)
	assert.Equal(t, int64(3), second.metrics.ProductsResumed.Load())

	ds := readDataset(t, root)
	slugs := map[string]int{}
	for _, p := range ds.Products {
		slugs[p.Slug]++
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, slugs)

	entries, err := os.ReadDir(filepath.Join(root, "products"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestCollectorSearchFailureContinues(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.searcher.errs = map[string]error{"ho": &types.FetchError{URL: "search", Kind: types.KindTimeout, Err: errors.New("timeout")}}

	report, err := f.collector(t).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ho"}, report.FailedKeywords)
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, f.scraper.calls)
	assert.FileExists(t, filepath.Join(f.root, "searches", storage.SanitizeKeyword("ho")+".json"))
	assert.Equal(t, []string{"ho"}, readDataset(t, f.root).Metadata.FailedKeywords)
}

func TestCollectorScrapeFailureContinues(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.scraper.errs = map[string]error{"b": types.ErrNavigation}

	report, err := f.collector(t).Run(context.Background())
	require.NoError(t, err)

	// b fails under both keywords since failures are not marked as seen
	assert.Equal(t, 2, f.scraper.calls["b"])
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 2, report.Products)
	assert.False(t, f.store.Exists("b"))
	assert.True(t, f.store.Exists("c"))
}

func TestCollectorSamplesCategories(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.cfg.Collector.CategorySampleSize = 2

	_, err := f.collector(t).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.enricher.descriptions, 2)

	data, err := os.ReadFile(filepath.Join(f.root, "drug_categories.json"))
	require.NoError(t, err)
	var cf storage.CategoryFile
	require.NoError(t, json.Unmarshal(data, &cf))
	require.Len(t, cf.Products, 2)
	assert.Equal(t, []string{"Hô hấp"}, cf.Products[0].Categories)
}

func TestCollectorWithoutExpansion(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.cfg.Collector.ExpandKeywords = false
	f.cfg.Collector.LocateProducts = false
	f.cfg.Collector.GenerateQuestions = false

	report, err := f.collector(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Keywords)
	assert.Empty(t, f.locator.hints)

	rec, err := f.store.Load("a")
	require.NoError(t, err)
	assert.Empty(t, rec.ChatbotQuestions)
	assert.Empty(t, rec.OCRLocations)
}

func TestCollectorProgress(t *testing.T) {
	f := newFixture(t, t.TempDir())
	var seen []string
	_, err := f.collector(t, WithProgress(func(done, total int, keyword string) {
		assert.Equal(t, 3, total)
		assert.Equal(t, len(seen)+1, done)
		seen = append(seen, keyword)
	})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ho", "sốt", "cảm cúm"}, seen)
}

func TestCollectorCancelled(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.collector(t).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.scraper.calls)
	assert.Equal(t, 0, report.Products)

	ds := readDataset(t, f.root)
	assert.NotNil(t, ds.Products)
	assert.Empty(t, ds.Products)
}

func TestCollectorSkipsUnusableSlugs(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.searcher.results = map[string][]string{"ho": {"", "../etc", "a"}}

	report, err := f.collector(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Dropped)
	assert.Equal(t, map[string]int{"a": 1}, f.scraper.calls)
}

func TestCollectorLogsStateTransitions(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.cfg.Collector.SeedKeywords = []string{"ho"}
	f.cfg.Collector.ExpandKeywords = false
	f.searcher.results = map[string][]string{"ho": {"a"}}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, err := NewCollector(f.cfg, Deps{Searcher: f.searcher, Scraper: f.scraper, Store: f.store}, f.metrics, logger)
	require.NoError(t, err)
	_, err = c.Run(context.Background())
	require.NoError(t, err)

	var states []string
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		if s, ok := entry["state"].(string); ok {
			states = append(states, s)
		}
	}
	assert.Equal(t, []string{"pending", "searching", "discovered", "scraping", "scraped", "enriching"}, states)
}

func TestNewCollectorRequiresDeps(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := NewCollector(cfg, Deps{}, nil, testLogger)
	assert.Error(t, err)

	_, err = NewCollector(cfg, Deps{Searcher: &fakeSearcher{}, Scraper: &fakeScraper{}}, nil, testLogger)
	assert.Error(t, err)
}

func TestSlugSet(t *testing.T) {
	s := NewSlugSet(4)
	assert.True(t, s.Add("panadol"))
	assert.False(t, s.Add(" panadol "))
	assert.True(t, s.Has("panadol"))
	assert.False(t, s.Has("Panadol"))
	s.Add("efferalgan")
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, []string{"efferalgan", "panadol"}, s.Export())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "failed", KeywordFailed.String())
	assert.Equal(t, "already_persisted", ProductAlreadyPersisted.String())
	assert.Equal(t, "unknown", ProductState(99).String())
}
