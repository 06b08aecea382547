package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Meta keys understood by BrowserFetcher.
const (
	MetaWaitSelector = "wait_selector"
	MetaWaitTimeout  = "wait_timeout"
)

// BrowserFetcher implements Fetcher using a headless browser via Rod.
// Pages are opened per fetch and closed afterwards.
type BrowserFetcher struct {
	browser  *rod.Browser
	cfg      *config.BrowserConfig
	logger   *slog.Logger
	launcher *launcher.Launcher
}

// NewBrowserFetcher launches (or connects to) a Chromium instance.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:    &cfg.Browser,
		logger: logger.With("component", "browser_fetcher"),
	}

	controlURL := cfg.Browser.ControlURL
	if controlURL == "" {
		u, err := bf.launchBrowser()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready",
		"headless", cfg.Browser.Headless,
		"stealth", cfg.Browser.Stealth,
	)

	return bf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(bf.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	bf.launcher = l
	return l.Launch()
}

// Fetch navigates to a URL and returns the rendered page content.
//
// Navigation waits for the network to go almost idle. When the request carries
// a wait_selector, the fetcher waits up to wait_timeout for it and proceeds
// with whatever rendered if it never appears.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()
	target := req.URLString()

	page, err := bf.newPage()
	if err != nil {
		return nil, &types.FetchError{URL: target, Kind: types.KindTransport, Err: err, Retryable: true}
	}
	defer func() { _ = page.Close() }()
	page = page.Context(ctx)

	if ua := req.Headers.Get("User-Agent"); ua != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua})
		if err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	timeout := bf.cfg.NavigationTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	wait := page.Timeout(timeout).WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := page.Timeout(timeout).Navigate(target); err != nil {
		return nil, bf.navigationError(ctx, target, err)
	}
	wait()

	if sel := req.MetaString(MetaWaitSelector); sel != "" {
		waitFor := bf.cfg.HeadingTimeout
		if d, ok := req.Meta[MetaWaitTimeout].(time.Duration); ok && d > 0 {
			waitFor = d
		}
		if _, err := page.Timeout(waitFor).Element(sel); err != nil {
			bf.logger.Warn("wait selector timeout, continuing", "url", target, "selector", sel, "error", err)
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, bf.navigationError(ctx, target, err)
	}

	finalURL := target
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	// Rod does not surface the document status; a rendered page is treated as 200.
	resp := types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration)

	bf.logger.Debug("browser fetch complete",
		"url", target,
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	return resp, nil
}

func (bf *BrowserFetcher) newPage() (*rod.Page, error) {
	if bf.cfg.Stealth {
		return stealth.Page(bf.browser)
	}
	return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

func (bf *BrowserFetcher) navigationError(ctx context.Context, target string, err error) error {
	fe := &types.FetchError{URL: target, Kind: types.KindTransport, Err: fmt.Errorf("%w: %v", types.ErrNavigation, err)}
	if ctx.Err() != nil {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		fe.Kind = types.KindTimeout
	}
	fe.Retryable = true
	return fe
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	var err error
	if bf.browser != nil {
		err = bf.browser.Close()
	}
	if bf.launcher != nil {
		bf.launcher.Cleanup()
	}
	return err
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
