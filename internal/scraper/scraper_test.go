package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeRenderer struct {
	html string
	err  error
	got  *types.Request
}

func (f *fakeRenderer) Fetch(_ context.Context, req *types.Request) (*types.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return types.NewBrowserResponse(req, 200, []byte(f.html), req.URLString(), time.Millisecond), nil
}

func newScraper(r Renderer) (*Scraper, *observability.Metrics) {
	m := observability.NewMetrics(testLogger)
	return New(config.DefaultConfig(), r, m, testLogger), m
}

func TestScrapeBuildsPageRequest(t *testing.T) {
	r := &fakeRenderer{html: `<h1 class="line-clamp-3">Berberin</h1>`}
	s, m := newScraper(r)

	rec, err := s.Scrape(context.Background(), "berberin-100")
	require.NoError(t, err)
	assert.Equal(t, "Berberin", rec.Name)
	assert.Equal(t, int64(1), m.ProductsScraped.Load())

	require.NotNil(t, r.got)
	assert.Equal(t, "https://www.pharmacity.vn/berberin-100.html", r.got.URLString())
	assert.Equal(t, "h1.line-clamp-3", r.got.MetaString(fetcher.MetaWaitSelector))
	assert.Equal(t, 5*time.Second, r.got.Meta[fetcher.MetaWaitTimeout])
}

func TestScrapeHeadingTimeoutStillReturnsRecord(t *testing.T) {
	// The renderer gave up waiting for the heading and returned what it had.
	r := &fakeRenderer{html: `<html><body><p>spinner</p></body></html>`}
	s, _ := newScraper(r)

	rec, err := s.Scrape(context.Background(), "slow")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.NotFound, rec.Name)
	assert.Equal(t, types.NotFound, rec.Description)
}

func TestScrapeNavigationFailure(t *testing.T) {
	r := &fakeRenderer{err: &types.FetchError{URL: "x", Kind: types.KindTimeout, Err: types.ErrNavigation}}
	s, m := newScraper(r)

	rec, err := s.Scrape(context.Background(), "gone")
	assert.Nil(t, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNavigation))
	assert.Equal(t, int64(1), m.ProductsFailed.Load())
}
