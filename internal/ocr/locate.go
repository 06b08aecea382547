package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/media"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// DrugAnalyzer reads a drug name out of recognised text.
type DrugAnalyzer interface {
	AnalyzeDrug(ctx context.Context, text string) types.DrugInfo
}

// Engine localises the product in each image of a batch.
type Engine struct {
	recognizer Recognizer
	analyzer   DrugAnalyzer
	fetcher    fetcher.Fetcher
	cfg        *config.OCRConfig
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewEngine creates a localisation engine. analyzer may be nil, in which case
// only the name hint is used for line matching.
func NewEngine(cfg *config.Config, recognizer Recognizer, analyzer DrugAnalyzer, f fetcher.Fetcher, logger *slog.Logger) *Engine {
	return &Engine{
		recognizer: recognizer,
		analyzer:   analyzer,
		fetcher:    f,
		cfg:        &cfg.OCR,
		limiter:    fetcher.NewPacer(cfg.OCR.Delay),
		logger:     logger.With("component", "ocr_engine"),
	}
}

// Locate processes urls strictly in order with a fixed gap between images and
// returns one Location per url. A failing image gets the default box and
// Success=false; it never stops the batch.
func (e *Engine) Locate(ctx context.Context, urls []string, hint string) []types.Location {
	results := make([]types.Location, 0, len(urls))
	for i, u := range urls {
		if err := e.limiter.Wait(ctx); err != nil {
			results = append(results, failedLocation(i, u, err))
			continue
		}

		loc, err := e.locateOne(ctx, i, u, hint)
		if err != nil {
			e.logger.Warn("image localisation failed", "index", i, "url", u, "error", err)
			results = append(results, failedLocation(i, u, err))
			continue
		}
		results = append(results, loc)
	}
	return results
}

func (e *Engine) locateOne(ctx context.Context, i int, u, hint string) (types.Location, error) {
	path, data, err := e.downloadTemp(ctx, u)
	if err != nil {
		return types.Location{}, err
	}
	defer os.Remove(path)

	canvas := DefaultCanvas
	if e.cfg.UseImageDimensions {
		if w, h, err := media.Dimensions(bytes.NewReader(data)); err == nil && w > 0 && h > 0 {
			canvas = Canvas{Width: float64(w), Height: float64(h)}
		}
	}

	loc := types.Location{ImageIndex: i, URL: u, Success: true}

	res, err := e.recognizer.Recognize(ctx, path)
	if err != nil {
		// Recognition failure degrades to "no text"; the image still gets a box.
		e.logger.Warn("ocr failed, using default box", "url", u, "error", err)
		loc.Error = err.Error()
		res = &Result{Lines: []types.TextLine{}}
	}

	if e.analyzer != nil && e.cfg.AnalyzeDrugName && res.Text != "" {
		loc.DrugInfo = e.analyzer.AnalyzeDrug(ctx, res.Text)
	}

	name := loc.DrugInfo.Name()
	if name == "" {
		name = hint
	}
	loc.Box = DetermineBox(res.Lines, name, canvas)

	e.logger.Debug("image localised",
		"index", i,
		"drug", name,
		"lines", len(res.Lines),
		"x_center", loc.Box.XCenter,
		"y_center", loc.Box.YCenter,
	)
	return loc, nil
}

// downloadTemp stores url under the temp dir. The caller removes the file.
func (e *Engine) downloadTemp(ctx context.Context, u string) (string, []byte, error) {
	req, err := types.NewRequest(u)
	if err != nil {
		return "", nil, err
	}
	req.Timeout = e.cfg.DownloadTimeout

	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return "", nil, err
	}
	if !media.IsImage(resp.Body) {
		return "", nil, fmt.Errorf("%s did not return an image", u)
	}

	if err := os.MkdirAll(e.cfg.TempDir, 0o755); err != nil {
		return "", nil, err
	}
	// the OCR backend infers the file type from the upload's extension
	ext := mimetype.Detect(resp.Body).Extension()
	if ext == "" {
		ext = ".jpg"
	}
	f, err := os.CreateTemp(e.cfg.TempDir, "ocr_*"+ext)
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), resp.Body, nil
}

func failedLocation(i int, u string, err error) types.Location {
	return types.Location{
		ImageIndex: i,
		URL:        u,
		Box:        types.DefaultBox(),
		Success:    false,
		Error:      err.Error(),
	}
}

// CleanTempDir empties dir, creating it when missing.
func CleanTempDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
