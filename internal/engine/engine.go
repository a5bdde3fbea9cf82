package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/observability"
	"github.com/IshaanNene/wxscrape/internal/parser"
	"github.com/IshaanNene/wxscrape/internal/pipeline"
	"github.com/IshaanNene/wxscrape/internal/types"
)

// ErrNoFetcher is returned by Run when no fetcher has been set.
var ErrNoFetcher = errors.New("no page fetcher configured")

// Fetcher obtains the markup of one result page.
type Fetcher interface {
	FetchPage(ctx context.Context, keyword string, page int) (*types.Page, error)
}

// Pipeline normalises extracted records.
type Pipeline interface {
	Process(rec types.ArticleRecord) (types.ArticleRecord, bool)
}

// ProgressFunc receives human-readable progress lines as they happen.
type ProgressFunc func(line string)

// Engine runs the fetch → extract → accumulate loop for a single keyword.
// A run is strictly sequential; the engine never owns the fetcher.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	fetcher   Fetcher
	extractor *parser.Extractor
	pipeline  Pipeline
	metrics   *observability.Metrics
	progress  ProgressFunc
}

// New creates an Engine with the default extractor and pipeline.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger.With("component", "engine"),
		extractor: parser.NewExtractor(&cfg.Search, logger),
		pipeline:  pipeline.Default(cfg.Search.Sentinel, logger),
		metrics:   observability.NewMetrics(logger),
	}
}

// SetFetcher sets the page fetching strategy.
func (e *Engine) SetFetcher(f Fetcher) { e.fetcher = f }

// SetPipeline replaces the record pipeline.
func (e *Engine) SetPipeline(p Pipeline) { e.pipeline = p }

// SetMetrics shares a metrics instance across engines.
func (e *Engine) SetMetrics(m *observability.Metrics) { e.metrics = m }

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *observability.Metrics { return e.metrics }

// OnProgress registers a callback for progress lines.
func (e *Engine) OnProgress(fn ProgressFunc) { e.progress = fn }

// Run walks result pages 1..NumPages and returns every record extracted, in
// page order then discovery order. Only an invalid request or a missing
// fetcher produce an error: a failed fetch, the end of results or context
// cancellation stop the run early and the records gathered so far are returned.
func (e *Engine) Run(ctx context.Context, req types.SearchRequest) (*types.RunResult, error) {
	if e.fetcher == nil {
		return nil, ErrNoFetcher
	}
	if err := req.Validate(e.cfg.Search.MaxPages); err != nil {
		return nil, err
	}

	e.metrics.RunsTotal.Add(1)
	r := &run{
		engine: e,
		result: &types.RunResult{Request: req, StartedAt: time.Now()},
		acc:    NewAccumulator(),
	}

	limit := rate.Inf
	if d := e.cfg.Search.PageDelay; d > 0 {
		limit = rate.Every(d)
	}
	limiter := rate.NewLimiter(limit, 1)

	e.logger.Info("run started", "keyword", req.Keyword, "pages", req.NumPages)

	for pageNum := 1; pageNum <= req.NumPages; pageNum++ {
		if err := limiter.Wait(ctx); err != nil {
			r.stop(fmt.Sprintf("run cancelled before page %d: %v", pageNum, err))
			break
		}
		if !r.page(ctx, pageNum) {
			break
		}
	}

	r.result.Records = r.acc.All()
	r.result.FinishedAt = time.Now()
	if r.result.StoppedEarly {
		e.metrics.RunsStopped.Add(1)
	}

	e.logger.Info("run finished",
		"keyword", req.Keyword,
		"pages_fetched", r.result.PagesFetched,
		"records", len(r.result.Records),
		"stopped_early", r.result.StoppedEarly,
		"duration", r.result.Duration(),
	)
	return r.result, nil
}

// run holds the state of one Run call.
type run struct {
	engine *Engine
	result *types.RunResult
	acc    *Accumulator
}

func (r *run) emit(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.result.Progress = append(r.result.Progress, line)
	r.engine.logger.Info(line)
	if r.engine.progress != nil {
		r.engine.progress(line)
	}
}

func (r *run) stop(reason string) {
	r.result.StoppedEarly = true
	r.result.StopReason = reason
	r.emit("%s", reason)
}

// page processes one result page and reports whether the run should go on.
func (r *run) page(ctx context.Context, pageNum int) bool {
	e := r.engine
	keyword := r.result.Request.Keyword
	total := r.result.Request.NumPages

	r.emit("Fetching page %d of %d", pageNum, total)
	page, err := e.fetcher.FetchPage(ctx, keyword, pageNum)
	if errors.Is(err, types.ErrEndOfResults) {
		r.stop(fmt.Sprintf("No more result pages after page %d", pageNum-1))
		return false
	}
	if err != nil {
		e.metrics.PagesFailed.Add(1)
		r.stop(fmt.Sprintf("Error fetching page %d: %v", pageNum, err))
		return false
	}
	r.result.PagesFetched++
	e.metrics.PagesFetched.Add(1)
	e.metrics.BytesFetched.Add(int64(len(page.Body)))

	attempts, err := e.extractor.Extract(page)
	if err != nil {
		e.metrics.PagesSkipped.Add(1)
		r.emit("Error finding articles on page %d: %v", pageNum, err)
		return true
	}

	found := 0
	for a := range attempts {
		r.emit("Processing article %d on page %d", a.Index+1, pageNum)
		if a.Err != nil {
			e.metrics.ArticlesError.Add(1)
			r.emit("Error extracting article %d on page %d: %v", a.Index+1, pageNum, a.Err)
			continue
		}
		rec, keep := e.pipeline.Process(a.Record)
		if !keep {
			e.metrics.ArticlesDrop.Add(1)
			continue
		}
		r.acc.Append(rec)
		e.metrics.ArticlesOK.Add(1)
		found++
	}
	r.emit("Page %d done: %d articles collected, %d in total", pageNum, found, r.acc.Len())
	return true
}
