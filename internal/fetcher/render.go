package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/types"
)

// RenderFetcher loads the parameterised search URL in a JS-rendering browser
// tab and returns the rendered document.
type RenderFetcher struct {
	cfg           *config.Config
	logger        *slog.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewRenderFetcher starts a chromedp browser shared by all page loads.
func NewRenderFetcher(cfg *config.Config, logger *slog.Logger) (*RenderFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Browser.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if len(cfg.Fetcher.UserAgents) > 0 {
		opts = append(opts, chromedp.UserAgent(cfg.Fetcher.UserAgents[0]))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &RenderFetcher{
		cfg:           cfg,
		logger:        logger.With("component", "render_fetcher"),
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// FetchPage navigates to the search URL for the page and waits, bounded, for
// the article containers. A page without containers is returned as-is.
func (rf *RenderFetcher) FetchPage(ctx context.Context, keyword string, page int) (*types.Page, error) {
	target, err := SearchURL(&rf.cfg.Search, keyword, page)
	if err != nil {
		return nil, &types.FetchError{URL: rf.cfg.Search.Endpoint, Page: page, Err: err}
	}
	start := time.Now()

	tabCtx, closeTab := chromedp.NewContext(rf.browserCtx)
	defer closeTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, rf.cfg.Fetcher.RequestTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(target)); err != nil {
		return nil, &types.FetchError{URL: target, Page: page, Err: err}
	}

	waitCtx, cancelWait := context.WithTimeout(tabCtx, rf.cfg.Browser.WaitTimeout)
	err = chromedp.Run(waitCtx, chromedp.WaitReady(rf.cfg.Search.ContainerSelector, chromedp.ByQuery))
	cancelWait()
	if err != nil {
		if ctx.Err() != nil {
			return nil, &types.FetchError{URL: target, Page: page, Err: ctx.Err()}
		}
		rf.logger.Warn("containers did not appear", "page", page, "selector", rf.cfg.Search.ContainerSelector, "error", err)
	}

	var html, location string
	if err := chromedp.Run(tabCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	); err != nil {
		return nil, &types.FetchError{URL: target, Page: page, Err: err}
	}
	if location == "" {
		location = target
	}

	rf.logger.Debug("render fetch complete",
		"page", page,
		"url", location,
		"size", len(html),
		"duration", time.Since(start),
	)
	return types.NewPage(page, location, []byte(html)), nil
}

// Close shuts the browser down.
func (rf *RenderFetcher) Close() error {
	rf.browserCancel()
	rf.allocCancel()
	return nil
}

// Type returns the fetcher type identifier.
func (rf *RenderFetcher) Type() string {
	return "render"
}
