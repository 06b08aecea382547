// Package catalog queries the pharmacy's public product API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/observability"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

const (
	searchPath  = "/pmc-ecm-product/api/public/search/index"
	productPath = "/pmc-ecm-product/api/public/product/"
)

// Client talks to the catalog search and detail endpoints.
type Client struct {
	fetcher fetcher.Fetcher
	cfg     *config.CatalogConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a catalog client over the given fetcher.
func NewClient(cfg *config.Config, f fetcher.Fetcher, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		fetcher: f,
		cfg:     &cfg.Catalog,
		metrics: metrics,
		logger:  logger.With("component", "catalog"),
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Search queries the catalog for keyword.
//
// The returned page is never nil: on any failure it is empty and the error says
// why, so callers can tell "no results" from "request failed". Image-bearing
// fields are removed from every item.
func (c *Client) Search(ctx context.Context, keyword string, page, limit int) (*types.SearchResultPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	rawURL := c.searchURL(keyword, page, limit)
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return types.EmptyPage(), err
	}
	req.Headers.Set("Accept", "application/json")

	c.metrics.SearchRequests.Add(1)
	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		c.metrics.SearchFailures.Add(1)
		c.logger.Warn("search failed", "keyword", keyword, "error", err)
		return types.EmptyPage(), err
	}

	result, err := decodeSearch(rawURL, resp.Body)
	if err != nil {
		c.metrics.SearchFailures.Add(1)
		c.logger.Warn("search response malformed", "keyword", keyword, "error", err)
		return types.EmptyPage(), err
	}

	for i := range result.Items {
		result.Items[i].StripImages()
	}

	c.logger.Debug("search complete", "keyword", keyword, "total", result.Total, "items", len(result.Items))
	return result, nil
}

func decodeSearch(rawURL string, body []byte) (*types.SearchResultPage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &types.FetchError{URL: rawURL, Kind: types.KindDecode, Err: err}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &types.FetchError{URL: rawURL, Kind: types.KindDecode, Err: types.ErrEmptyResponse}
	}

	var page types.SearchResultPage
	if err := json.Unmarshal(env.Data, &page); err != nil {
		return nil, &types.FetchError{URL: rawURL, Kind: types.KindDecode, Err: err}
	}
	if page.Items == nil {
		page.Items = []types.SearchItem{}
	}
	return &page, nil
}

// Product fetches the JSON detail record for slug. The payload shape is owned
// by the remote API, so it is returned raw.
func (c *Client) Product(ctx context.Context, slug string) (json.RawMessage, error) {
	rawURL := strings.TrimRight(c.cfg.APIBaseURL, "/") + productPath + url.PathEscape(slug)
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	req.Headers.Set("Accept", "application/json")

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, &types.FetchError{URL: rawURL, Kind: types.KindDecode, Err: err}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("product %q: %w", slug, types.ErrNotFound)
	}
	return env.Data, nil
}

// ProductPageURL is the rendered product page for slug.
func (c *Client) ProductPageURL(slug string) string {
	return ProductPageURL(c.cfg.SiteURL, slug)
}

// ProductPageURL builds "<site>/<slug>.html".
func ProductPageURL(siteURL, slug string) string {
	return strings.TrimRight(siteURL, "/") + "/" + slug + ".html"
}

// searchURL assembles the query by hand so the keyword is encoded exactly once.
func (c *Client) searchURL(keyword string, page, limit int) string {
	params := [][2]string{
		{"platform", strconv.Itoa(c.cfg.Platform)},
		{"index", strconv.Itoa(page)},
		{"limit", strconv.Itoa(limit)},
		{"total", "0"},
		{"refresh", "true"},
		{"keyword", EncodeKeyword(keyword)},
		{"order", c.cfg.Order},
		{"order_by", c.cfg.OrderBy},
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(c.cfg.APIBaseURL, "/"))
	b.WriteString(searchPath)
	for i, p := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(p[1])
	}
	return b.String()
}

// EncodeKeyword percent-encodes every character of s that is not an
// unreserved URI component character, after NFC normalisation.
func EncodeKeyword(s string) string {
	s = norm.NFC.String(s)

	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for _, r := range s {
		if isUnreserved(r) {
			b.WriteRune(r)
			continue
		}
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], r)
		for _, c := range buf[:n] {
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0F])
		}
	}
	return b.String()
}

func isUnreserved(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_.!~*'()", r)
}
