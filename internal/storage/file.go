package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

const (
	productsDir  = "products"
	searchesDir  = "searches"
	dataFile     = "data.json"
	keywordsFile = "search_keywords.json"
	categoryFile = "drug_categories.json"
	datasetFile  = "complete_dataset.json"
)

// KeywordFile is the keyword list written once per run.
type KeywordFile struct {
	SeedKeywords      []string `json:"seed_keywords"`
	GeneratedKeywords []string `json:"generated_keywords"`
	AllKeywords       []string `json:"all_keywords"`
}

// CategorizedProduct lists the categories one sampled product fell into.
type CategorizedProduct struct {
	Slug       string   `json:"slug"`
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// CategoryFile is the category grouping of a product sample.
type CategoryFile struct {
	Categories map[string][]int     `json:"categories"`
	Products   []CategorizedProduct `json:"products"`
}

// NewCategoryFile resolves index membership for each sampled product.
func NewCategoryFile(categories map[string][]int, sample []*types.ProductRecord) *CategoryFile {
	cf := &CategoryFile{
		Categories: categories,
		Products:   make([]CategorizedProduct, len(sample)),
	}
	if cf.Categories == nil {
		cf.Categories = map[string][]int{}
	}
	for i, p := range sample {
		cp := CategorizedProduct{Slug: p.Slug, Name: p.Name, Categories: []string{}}
		for name, idxs := range categories {
			for _, idx := range idxs {
				if idx == i {
					cp.Categories = append(cp.Categories, name)
					break
				}
			}
		}
		sort.Strings(cp.Categories)
		cf.Products[i] = cp
	}
	return cf
}

// DatasetMetadata describes one collection run.
type DatasetMetadata struct {
	RunID                string    `json:"run_id"`
	TotalProducts        int       `json:"total_products"`
	TotalKeywords        int       `json:"total_keywords"`
	FailedKeywords       []string  `json:"failed_keywords"`
	CollectionDate       time.Time `json:"collection_date"`
	ExecutionTimeSeconds float64   `json:"execution_time_seconds"`
}

// Dataset is the aggregate snapshot of every collected record.
type Dataset struct {
	Metadata DatasetMetadata        `json:"metadata"`
	Keywords []string               `json:"keywords"`
	Products []*types.ProductRecord `json:"products"`
}

// FileStore lays records out as products/<slug>/data.json under a root
// directory, next to the run-level artifacts. Saved records are mirrored to
// any attached sinks; a sink failure is logged, never returned.
type FileStore struct {
	root   string
	sinks  []Sink
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewFileStore creates the output tree under root.
func NewFileStore(root string, logger *slog.Logger, sinks ...Sink) (*FileStore, error) {
	for _, dir := range []string{root, filepath.Join(root, productsDir), filepath.Join(root, searchesDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("create output dir: %w", err)}
		}
	}
	return &FileStore{
		root:   root,
		sinks:  sinks,
		logger: logger.With("component", "file_storage"),
	}, nil
}

func (s *FileStore) Name() string { return "file" }

// Root returns the output directory.
func (s *FileStore) Root() string { return s.root }

// ProductDir returns the directory holding slug's record and images.
func (s *FileStore) ProductDir(slug string) string {
	return filepath.Join(s.root, productsDir, slug)
}

func (s *FileStore) productPath(slug string) (string, error) {
	if err := ValidSlug(slug); err != nil {
		return "", err
	}
	return filepath.Join(s.ProductDir(slug), dataFile), nil
}

// Exists reports whether a record for slug has been persisted.
func (s *FileStore) Exists(slug string) bool {
	path, err := s.productPath(slug)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Load reads the persisted record for slug.
func (s *FileStore) Load(slug string) (*types.ProductRecord, error) {
	path, err := s.productPath(slug)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("product %q: %w", slug, types.ErrNotFound)
		}
		return nil, &types.StorageError{Backend: "file", Err: err}
	}
	var rec types.ProductRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return &rec, nil
}

// Save writes rec atomically and mirrors it to the sinks.
func (s *FileStore) Save(ctx context.Context, rec *types.ProductRecord) error {
	path, err := s.productPath(rec.Slug)
	if err != nil {
		return err
	}
	if err := writeJSON(path, rec); err != nil {
		return err
	}

	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.logger.Debug("product saved", "slug", rec.Slug, "path", path)

	for _, sink := range s.sinks {
		if err := sink.Store(ctx, []*types.ProductRecord{rec}); err != nil {
			s.logger.Error("sink store failed", "sink", sink.Name(), "slug", rec.Slug, "error", err)
		}
	}
	return nil
}

// SaveSearch writes the stripped search page for keyword as an audit artifact.
func (s *FileStore) SaveSearch(keyword string, page *types.SearchResultPage) (string, error) {
	path := filepath.Join(s.root, searchesDir, SanitizeKeyword(keyword)+".json")
	return path, writeJSON(path, page)
}

// SaveKeywords writes the run's keyword list.
func (s *FileStore) SaveKeywords(kf *KeywordFile) error {
	return writeJSON(filepath.Join(s.root, keywordsFile), kf)
}

// SaveCategories writes the category grouping.
func (s *FileStore) SaveCategories(cf *CategoryFile) error {
	return writeJSON(filepath.Join(s.root, categoryFile), cf)
}

// SaveDataset writes the aggregate dataset.
func (s *FileStore) SaveDataset(ds *Dataset) error {
	if err := writeJSON(filepath.Join(s.root, datasetFile), ds); err != nil {
		return err
	}
	s.logger.Info("dataset written",
		"path", filepath.Join(s.root, datasetFile),
		"products", len(ds.Products),
		"keywords", len(ds.Keywords),
	)
	return nil
}

// Close closes every sink and returns the first error.
func (s *FileStore) Close() error {
	s.logger.Info("file storage closing", "saved", s.count)
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SanitizeKeyword folds keyword to ASCII, replaces every rune outside
// [A-Za-z0-9] with '_' and appends the first 8 hex digits of the sha256 of the
// NFC-normalised keyword, so keywords that fold alike still get distinct names.
func SanitizeKeyword(keyword string) string {
	keyword = norm.NFC.String(keyword)
	folded, _, err := transform.String(foldDiacritics(), keyword)
	if err != nil {
		folded = keyword
	}

	var sb strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	sum := sha256.Sum256([]byte(keyword))
	if sb.Len() > 0 {
		sb.WriteByte('_')
	}
	sb.WriteString(hex.EncodeToString(sum[:4]))
	return sb.String()
}

// foldDiacritics strips combining marks and maps đ/Đ, which has no decomposition.
func foldDiacritics() transform.Transformer {
	return transform.Chain(
		runes.Map(func(r rune) rune {
			switch r {
			case 'đ':
				return 'd'
			case 'Đ':
				return 'D'
			}
			return r
		}),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
}

// ValidSlug rejects slugs that cannot name a directory under products/.
func ValidSlug(slug string) error {
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) {
		return &types.StorageError{Backend: "file", Err: fmt.Errorf("invalid slug %q", slug)}
	}
	return nil
}

// writeJSON encodes v with indentation into a temp file next to path and
// renames it into place.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &types.StorageError{Backend: "file", Err: fmt.Errorf("create dir: %w", err)}
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}
	tmp := f.Name()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return &types.StorageError{Backend: "file", Err: fmt.Errorf("encode JSON: %w", err)}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &types.StorageError{Backend: "file", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &types.StorageError{Backend: "file", Err: err}
	}
	return nil
}
