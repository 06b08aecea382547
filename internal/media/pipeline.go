// Package media downloads product images into the local store and compresses them.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
)

// Status is the per-image outcome of FetchAndStore.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// Outcome describes what happened to one image URL.
type Outcome struct {
	Index      int             `json:"index"`
	URL        string          `json:"url"`
	Path       string          `json:"path"`
	Status     Status          `json:"status"`
	Compressed *CompressResult `json:"compressed,omitempty"`
	Err        error           `json:"-"`
}

// ImagePath is where image i of a product lives.
func ImagePath(productDir string, i int) string {
	return filepath.Join(productDir, "images", fmt.Sprintf("image_%d.jpg", i))
}

// Pipeline stores product images one at a time with a fixed spacing.
type Pipeline struct {
	downloader *Downloader
	cfg        *config.ImagesConfig
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewPipeline creates an image pipeline.
func NewPipeline(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		downloader: NewDownloader(cfg.Images.DownloadTimeout, cfg.Images.MaxSizeMB, cfg.Catalog.UserAgent, logger),
		cfg:        &cfg.Images,
		limiter:    fetcher.NewPacer(cfg.Images.Delay),
		metrics:    metrics,
		logger:     logger.With("component", "image_pipeline"),
	}
}

// FetchAndStore downloads each URL to productDir/images/image_<i>.jpg.
// Existing files are skipped, failures do not stop the batch, and newly
// downloaded files are compressed in place when enabled.
func (p *Pipeline) FetchAndStore(ctx context.Context, urls []string, productDir string) []Outcome {
	outcomes := make([]Outcome, 0, len(urls))
	var downloaded, skipped, failed int
	var before, after int64

	for i, u := range urls {
		if err := p.limiter.Wait(ctx); err != nil {
			outcomes = append(outcomes, Outcome{Index: i, URL: u, Status: StatusFailed, Err: err})
			failed++
			continue
		}

		out := p.storeOne(ctx, i, u, productDir)
		switch out.Status {
		case StatusDownloaded:
			downloaded++
			if out.Compressed != nil {
				before += out.Compressed.OriginalSize
				after += out.Compressed.CompressedSize
			}
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
		outcomes = append(outcomes, out)
	}

	if len(urls) > 0 {
		p.logger.Info("images stored",
			"dir", productDir,
			"downloaded", downloaded,
			"skipped", skipped,
			"failed", failed,
		)
	}
	if before > 0 {
		p.logger.Info("compression saved space",
			"dir", productDir,
			"saved", humanSize(before-after),
			"reduction_percent", fmt.Sprintf("%.2f", float64(before-after)/float64(before)*100),
		)
	}
	return outcomes
}

func (p *Pipeline) storeOne(ctx context.Context, i int, u, productDir string) Outcome {
	out := Outcome{Index: i, URL: u, Path: ImagePath(productDir, i)}

	if _, err := os.Stat(out.Path); err == nil {
		p.metrics.ImagesSkipped.Add(1)
		p.logger.Debug("image already exists", "path", out.Path)
		out.Status = StatusSkipped
		return out
	}

	res, err := p.downloader.Download(ctx, u, out.Path)
	if err != nil {
		p.metrics.ImagesFailed.Add(1)
		p.logger.Warn("image download failed", "url", u, "error", err)
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	p.metrics.ImagesDownloaded.Add(1)
	p.metrics.BytesDownloaded.Add(res.Size)
	out.Status = StatusDownloaded

	if !p.cfg.CompressionEnabled {
		return out
	}
	cr, err := Compress(out.Path, p.cfg.Quality)
	if err != nil {
		p.logger.Warn("image compression failed, keeping original", "path", out.Path, "error", err)
		return out
	}
	p.metrics.ImagesCompressed.Add(1)
	p.metrics.BytesSaved.Add(cr.OriginalSize - cr.CompressedSize)
	out.Compressed = cr
	p.logger.Debug("image compressed",
		"path", out.Path,
		"before", humanSize(cr.OriginalSize),
		"after", humanSize(cr.CompressedSize),
	)
	return out
}
