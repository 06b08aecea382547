package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// DownloadResult tracks a downloaded file.
type DownloadResult struct {
	URL         string        `json:"url"`
	LocalPath   string        `json:"local_path"`
	Size        int64         `json:"size"`
	ContentType string        `json:"content_type"`
	Hash        string        `json:"hash"`
	Duration    time.Duration `json:"duration"`
}

// Downloader streams remote files to disk.
type Downloader struct {
	client    *http.Client
	maxSize   int64
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// NewDownloader creates a downloader with a per-download timeout and size cap.
func NewDownloader(timeout time.Duration, maxSizeMB int64, userAgent string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:    &http.Client{},
		maxSize:   maxSizeMB * 1024 * 1024,
		timeout:   timeout,
		userAgent: userAgent,
		logger:    logger.With("component", "media_downloader"),
	}
}

// Download writes rawURL to localPath. The file only appears at localPath once
// fully written, within the size cap and sniffed as an image, so a truncated or
// non-image body is never mistaken for a finished download.
func (d *Downloader) Download(ctx context.Context, rawURL, localPath string) (*DownloadResult, error) {
	start := time.Now()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Kind: types.KindTransport, Err: err}
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		fe := &types.FetchError{URL: rawURL, Kind: types.KindTransport, Err: err}
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			fe.Kind = types.KindTimeout
			fe.Retryable = true
		}
		return nil, fe
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.ClassifyStatus(rawURL, resp.StatusCode, 0, fmt.Errorf("download status %d", resp.StatusCode))
	}

	if d.maxSize > 0 && resp.ContentLength > d.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", types.ErrTooLarge, resp.ContentLength, d.maxSize)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}

	partPath := localPath + ".part"
	f, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	hasher := sha256.New()
	writer := io.MultiWriter(f, hasher)

	var reader io.Reader = resp.Body
	if d.maxSize > 0 {
		reader = io.LimitReader(resp.Body, d.maxSize+1)
	}

	size, err := io.Copy(writer, reader)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		return nil, &types.FetchError{URL: rawURL, Kind: types.KindTransport, Err: fmt.Errorf("write file: %w", err), Retryable: true}
	}
	if d.maxSize > 0 && size > d.maxSize {
		os.Remove(partPath)
		return nil, fmt.Errorf("%w: more than %d bytes", types.ErrTooLarge, d.maxSize)
	}

	mt, err := mimetype.DetectFile(partPath)
	if err != nil || !strings.HasPrefix(mt.String(), "image/") {
		os.Remove(partPath)
		if err != nil {
			return nil, fmt.Errorf("detect type: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", types.ErrNotImage, mt.String())
	}

	if err := os.Rename(partPath, localPath); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("finalize file: %w", err)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))
	result := &DownloadResult{
		URL:         rawURL,
		LocalPath:   localPath,
		Size:        size,
		ContentType: mt.String(),
		Hash:        hash,
		Duration:    time.Since(start),
	}

	d.logger.Debug("file downloaded",
		"url", rawURL,
		"size", size,
		"hash", hash[:16],
		"duration", result.Duration,
	)

	return result, nil
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
