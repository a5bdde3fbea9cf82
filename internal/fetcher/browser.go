package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/wxscrape/internal/automation"
	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/types"
)

// BrowserFetcher drives the portal's own search form and pagination control
// in a headless browser. One instance owns one browser session for a run.
type BrowserFetcher struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	cfg      *config.Config
	logger   *slog.Logger

	mu        sync.Mutex
	current   int
	keyword   string
	closeOnce sync.Once
	closeErr  error
}

// NewBrowserFetcher launches Chromium and opens a blank tab.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:    cfg,
		logger: logger.With("component", "browser_fetcher"),
	}

	bf.launcher = launcher.New().
		Headless(cfg.Browser.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	controlURL, err := bf.launcher.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		bf.launcher.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	if cfg.Browser.Stealth {
		bf.page, err = stealth.Page(browser)
	} else {
		bf.page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = bf.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	bf.logger.Info("browser fetcher ready",
		"headless", cfg.Browser.Headless,
		"stealth", cfg.Browser.Stealth,
	)
	return bf, nil
}

// FetchPage returns the rendered markup of the requested page. Page 1 submits
// the keyword through the portal's search box; every following page must be
// requested in order and is reached by activating the "next page" link.
func (bf *BrowserFetcher) FetchPage(ctx context.Context, keyword string, page int) (*types.Page, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	ba := automation.NewBrowserAutomation(bf.page.Context(ctx), bf.logger)
	wait := bf.cfg.Browser.WaitTimeout

	switch {
	case page == 1:
		if err := ba.Open(bf.cfg.Search.PortalURL, bf.cfg.Fetcher.RequestTimeout); err != nil {
			return nil, &types.FetchError{URL: bf.cfg.Search.PortalURL, Page: page, Err: err}
		}
		if err := sleepCtx(ctx, bf.cfg.Browser.SettleDelay); err != nil {
			return nil, &types.FetchError{URL: bf.cfg.Search.PortalURL, Page: page, Err: err}
		}
		if err := ba.TypeAndSubmit(bf.cfg.Browser.QuerySelect, keyword, bf.cfg.Fetcher.RequestTimeout); err != nil {
			return nil, &types.FetchError{URL: bf.cfg.Search.PortalURL, Page: page, Err: err}
		}
		bf.keyword = keyword

	case page == bf.current+1 && keyword == bf.keyword:
		err := ba.ClickLinkText(bf.cfg.Browser.NextPageText, wait)
		if errors.Is(err, automation.ErrNotClickable) {
			bf.logger.Info("next page control unavailable", "page", page, "error", err)
			return nil, fmt.Errorf("page %d: %w", page, types.ErrEndOfResults)
		}
		if err != nil {
			return nil, &types.FetchError{URL: ba.URL(), Page: page, Err: err}
		}

	default:
		return nil, &types.FetchError{
			URL:  ba.URL(),
			Page: page,
			Err:  fmt.Errorf("%w: at page %d, asked for %d", types.ErrOutOfOrder, bf.current, page),
		}
	}

	if err := sleepCtx(ctx, bf.cfg.Browser.SettleDelay); err != nil {
		return nil, &types.FetchError{URL: ba.URL(), Page: page, Err: err}
	}
	if err := ba.WaitForElement(bf.cfg.Search.ContainerSelector, wait); err != nil {
		return nil, &types.FetchError{URL: ba.URL(), Page: page, Err: err}
	}

	html, err := ba.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: ba.URL(), Page: page, Err: err}
	}
	bf.current = page

	finalURL := ba.URL()
	bf.logger.Debug("browser fetch complete", "page", page, "url", finalURL, "size", len(html))
	return types.NewPage(page, finalURL, []byte(html)), nil
}

// Close terminates the browser session. Safe to call more than once.
func (bf *BrowserFetcher) Close() error {
	bf.closeOnce.Do(func() {
		if bf.browser != nil {
			bf.closeErr = bf.browser.Close()
		}
		if bf.launcher != nil {
			bf.launcher.Cleanup()
		}
	})
	return bf.closeErr
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
