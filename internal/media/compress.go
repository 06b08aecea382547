package media

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"strings"

	// decoders for the formats the CDN serves
	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// CompressResult reports a re-encode.
type CompressResult struct {
	OriginalSize   int64   `json:"original_size"`
	CompressedSize int64   `json:"compressed_size"`
	Reduction      float64 `json:"reduction_percent"`
}

// Compress re-encodes the image at path as JPEG at quality, in place.
// On any failure the original file is left untouched.
func Compress(path string, quality int) (*CompressResult, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d out of range", quality)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect type: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("not an image: %s", mt.String())
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bufio.NewReader(src))
	src.Close()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mt.String(), err)
	}

	tmpPath := path + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(out)
	err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	if err == nil {
		err = w.Flush()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("replace original: %w", err)
	}

	after, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	res := &CompressResult{
		OriginalSize:   info.Size(),
		CompressedSize: after.Size(),
	}
	if res.OriginalSize > 0 {
		res.Reduction = float64(res.OriginalSize-res.CompressedSize) / float64(res.OriginalSize) * 100
	}
	return res, nil
}

// Dimensions reads the pixel size from an image header without decoding it.
func Dimensions(r io.Reader) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// IsImage sniffs the first bytes of data.
func IsImage(data []byte) bool {
	return strings.HasPrefix(mimetype.Detect(data).String(), "image/")
}
