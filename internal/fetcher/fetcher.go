// Package fetcher retrieves catalog JSON, images and rendered product pages.
package fetcher

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Fetcher is implemented by HTTPFetcher (API calls, images, OCR and LLM
// requests) and BrowserFetcher (rendered product pages). Failures are
// returned as *types.FetchError where the transport can classify them.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
	Close() error
	Type() string
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*BrowserFetcher)(nil)
)

// NewPacer returns a limiter that lets one operation through every d, the
// first immediately. A non-positive d disables pacing.
func NewPacer(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}
