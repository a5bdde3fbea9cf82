// Package wxscrape provides a public SDK for embedding the scraper as a library.
//
// Example usage:
//
//	s, err := wxscrape.New(
//	    wxscrape.WithFetcher("http"),
//	    wxscrape.WithDelay(3*time.Second),
//	)
//	if err != nil { ... }
//	defer s.Close()
//
//	res, err := s.Scrape(ctx, "AI绘画", 2)
//	name, data, err := s.Export(res)
//	os.WriteFile(name, data, 0o644)
package wxscrape

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/engine"
	"github.com/IshaanNene/wxscrape/internal/fetcher"
	"github.com/IshaanNene/wxscrape/internal/observability"
	"github.com/IshaanNene/wxscrape/internal/storage"
	"github.com/IshaanNene/wxscrape/internal/types"
)

type (
	// Article is one extracted search result.
	Article = types.ArticleRecord
	// Result is the outcome of a Scrape call.
	Result = types.RunResult
	// Page is the raw markup of one result page.
	Page = types.Page
	// PageFetcher obtains result pages; see UseFetcher.
	PageFetcher = fetcher.PageFetcher
)

// Scraper is the high-level API for using the scraper as a library.
type Scraper struct {
	cfg      *config.Config
	logger   *slog.Logger
	exporter storage.Exporter
	metrics  *observability.Metrics

	mu       sync.Mutex
	progress func(string)
	fetcher  PageFetcher
	owned    bool
}

// Option configures a Scraper.
type Option func(*config.Config)

// WithFetcher selects the page fetching strategy: http, browser or render.
func WithFetcher(typ string) Option {
	return func(c *config.Config) { c.Fetcher.Type = typ }
}

// WithDelay sets the pause between result pages.
func WithDelay(d time.Duration) Option {
	return func(c *config.Config) { c.Search.PageDelay = d }
}

// WithMaxPages sets the upper bound for the page count of a request.
func WithMaxPages(n int) Option {
	return func(c *config.Config) { c.Search.MaxPages = n }
}

// WithFormat sets the export format: xlsx or csv.
func WithFormat(format string) Option {
	return func(c *config.Config) { c.Export.Format = format }
}

// WithSheetName sets the worksheet name of xlsx exports.
func WithSheetName(name string) Option {
	return func(c *config.Config) { c.Export.SheetName = name }
}

// WithLabel sets the file name prefix of exports.
func WithLabel(label string) Option {
	return func(c *config.Config) { c.Search.Label = label }
}

// WithEndpoint points the http and render fetchers at a different search endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *config.Config) { c.Search.Endpoint = endpoint }
}

// WithHeadless toggles the headless mode of browser-based fetchers.
func WithHeadless(headless bool) Option {
	return func(c *config.Config) { c.Browser.Headless = headless }
}

// WithConfig replaces the whole configuration, e.g. one returned by a config loader.
func WithConfig(cfg *config.Config) Option {
	return func(c *config.Config) { *c = *cfg }
}

// New creates a Scraper. The fetcher is created on the first Scrape call.
func New(opts ...Option) (*Scraper, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	exporter, err := storage.NewExporter(cfg.Export.Format, cfg.Export.SheetName)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return &Scraper{
		cfg:      cfg,
		logger:   logger,
		exporter: exporter,
		metrics:  observability.NewMetrics(logger),
	}, nil
}

// OnProgress registers a callback for progress lines.
func (s *Scraper) OnProgress(fn func(line string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = fn
}

// UseFetcher installs a caller-owned fetcher. Close does not close it.
func (s *Scraper) UseFetcher(f PageFetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetcher = f
	s.owned = false
}

// Stats returns the counters accumulated over all runs.
func (s *Scraper) Stats() map[string]int64 { return s.metrics.Snapshot() }

// Scrape fetches numPages result pages for keyword. Partial results are
// returned without error when a page fails to load.
func (s *Scraper) Scrape(ctx context.Context, keyword string, numPages int) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetcher == nil {
		f, err := fetcher.New(s.cfg, s.logger)
		if err != nil {
			return nil, fmt.Errorf("create fetcher: %w", err)
		}
		s.fetcher = f
		s.owned = true
	}

	eng := engine.New(s.cfg, s.logger)
	eng.SetFetcher(s.fetcher)
	eng.SetMetrics(s.metrics)
	if s.progress != nil {
		eng.OnProgress(s.progress)
	}
	return eng.Run(ctx, types.SearchRequest{Keyword: keyword, NumPages: numPages})
}

// Export serialises a result and returns the suggested file name with the file bytes.
func (s *Scraper) Export(res *Result) (string, []byte, error) {
	buf, err := s.exporter.Export(res.Records)
	s.metrics.ExportsTotal.Add(1)
	if err != nil {
		s.metrics.ExportsFailed.Add(1)
		return "", nil, err
	}
	finished := res.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	return storage.FileName(s.cfg.Search.Label, res.Request.Keyword, s.exporter.Extension(), finished), buf.Bytes(), nil
}

// ContentType returns the MIME type of exported files.
func (s *Scraper) ContentType() string { return s.exporter.ContentType() }

// Close releases the fetcher if the Scraper created it.
func (s *Scraper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetcher == nil || !s.owned {
		return nil
	}
	err := s.fetcher.Close()
	s.fetcher = nil
	return err
}
