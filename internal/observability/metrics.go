package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for scrape runs.
type Metrics struct {
	RunsTotal     atomic.Int64
	RunsStopped   atomic.Int64
	PagesFetched  atomic.Int64
	PagesFailed   atomic.Int64
	PagesSkipped  atomic.Int64
	ArticlesOK    atomic.Int64
	ArticlesError atomic.Int64
	ArticlesDrop  atomic.Int64
	BytesFetched  atomic.Int64
	ExportsTotal  atomic.Int64
	ExportsFailed atomic.Int64
	ImagesOK      atomic.Int64
	ImagesFailed  atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"wxscrape_runs_total", "Total scrape runs started", m.RunsTotal.Load()},
		{"wxscrape_runs_stopped_early_total", "Runs that ended before the requested page count", m.RunsStopped.Load()},
		{"wxscrape_pages_fetched_total", "Result pages fetched", m.PagesFetched.Load()},
		{"wxscrape_pages_failed_total", "Result pages that failed to fetch", m.PagesFailed.Load()},
		{"wxscrape_pages_skipped_total", "Result pages skipped after a page-level extraction failure", m.PagesSkipped.Load()},
		{"wxscrape_articles_extracted_total", "Articles extracted", m.ArticlesOK.Load()},
		{"wxscrape_articles_failed_total", "Articles that failed extraction", m.ArticlesError.Load()},
		{"wxscrape_articles_dropped_total", "Articles dropped by the pipeline", m.ArticlesDrop.Load()},
		{"wxscrape_bytes_fetched_total", "Bytes of markup fetched", m.BytesFetched.Load()},
		{"wxscrape_exports_total", "Files exported", m.ExportsTotal.Load()},
		{"wxscrape_exports_failed_total", "Exports that failed", m.ExportsFailed.Load()},
		{"wxscrape_images_downloaded_total", "Images downloaded", m.ImagesOK.Load()},
		{"wxscrape_images_failed_total", "Image downloads that failed", m.ImagesFailed.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"runs_total":         m.RunsTotal.Load(),
		"runs_stopped_early": m.RunsStopped.Load(),
		"pages_fetched":      m.PagesFetched.Load(),
		"pages_failed":       m.PagesFailed.Load(),
		"pages_skipped":      m.PagesSkipped.Load(),
		"articles_extracted": m.ArticlesOK.Load(),
		"articles_failed":    m.ArticlesError.Load(),
		"articles_dropped":   m.ArticlesDrop.Load(),
		"bytes_fetched":      m.BytesFetched.Load(),
		"exports_total":      m.ExportsTotal.Load(),
		"exports_failed":     m.ExportsFailed.Load(),
		"images_downloaded":  m.ImagesOK.Load(),
		"images_failed":      m.ImagesFailed.Load(),
	}
}
