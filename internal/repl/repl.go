package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/engine"
	"github.com/IshaanNene/wxscrape/internal/observability"
	"github.com/IshaanNene/wxscrape/internal/parser"
	"github.com/IshaanNene/wxscrape/internal/storage"
	"github.com/IshaanNene/wxscrape/internal/types"
)

// REPL is an interactive shell for trying result pages, selectors and runs.
type REPL struct {
	cfg     *config.Config
	fetcher engine.Fetcher
	metrics *observability.Metrics
	logger  *slog.Logger
	in      *bufio.Reader
	out     io.Writer

	page *types.Page
	last *types.RunResult
}

// New creates a REPL reading commands from in and writing to out.
func New(cfg *config.Config, f engine.Fetcher, in io.Reader, out io.Writer, logger *slog.Logger) *REPL {
	return &REPL{
		cfg:     cfg,
		fetcher: f,
		metrics: observability.NewMetrics(logger),
		logger:  logger,
		in:      bufio.NewReader(in),
		out:     out,
	}
}

// Start runs the command loop until exit or end of input.
func (r *REPL) Start(ctx context.Context) {
	r.printf("wxscrape interactive shell\n")
	r.printf("   Type 'help' for available commands, 'exit' to quit.\n\n")

	for {
		r.printf("wxscrape> ")
		line, err := r.in.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if !r.dispatch(ctx, line) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (r *REPL) dispatch(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "help", "?":
		r.printHelp()
	case "exit", "quit", "q":
		r.printf("Goodbye!\n")
		return false
	case "fetch":
		r.cmdFetch(ctx, args)
	case "articles":
		r.cmdArticles()
	case "select":
		r.cmdSelect(args)
	case "run":
		r.cmdRun(ctx, args)
	case "export":
		r.cmdExport(args)
	case "config":
		r.cmdConfig()
	case "set":
		r.cmdSet(args)
	case "stats":
		r.cmdStats()
	default:
		r.printf("Unknown command: %s. Type 'help' for available commands.\n", cmd)
	}
	return true
}

func (r *REPL) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *REPL) printHelp() {
	r.printf(`
Available Commands:
  fetch <keyword> [page]   Fetch one result page and keep it as the current page
  articles                 Extract the articles of the current page
  select <css>             Print the text matched by a CSS selector on the current page
  run <keyword> [pages]    Run a full scrape
  export [dir]             Export the last run

  config                   Show current configuration
  set <key> <value>        Update a setting (delay, sentinel, container, label, format)
  stats                    Show counters

  help                     Show this help
  exit                     Exit the shell
`)
}

func (r *REPL) cmdFetch(ctx context.Context, args []string) {
	if len(args) == 0 {
		r.printf("Usage: fetch <keyword> [page]\n")
		return
	}
	keyword, pageNum := args[0], 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			r.printf("Error: page must be a positive number\n")
			return
		}
		pageNum = n
	}

	start := time.Now()
	page, err := r.fetcher.FetchPage(ctx, keyword, pageNum)
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	r.page = page

	containers := 0
	if doc, err := page.Document(); err == nil {
		containers = doc.Find(r.cfg.Search.ContainerSelector).Length()
	}
	r.printf("\n  URL:          %s\n", page.URL)
	r.printf("  Size:         %d bytes\n", len(page.Body))
	r.printf("  Containers:   %d (%s)\n", containers, r.cfg.Search.ContainerSelector)
	r.printf("  Duration:     %s\n", time.Since(start).Round(time.Millisecond))
}

func (r *REPL) cmdArticles() {
	if r.page == nil {
		r.printf("No page fetched yet. Use 'fetch <keyword>'.\n")
		return
	}
	attempts, err := parser.NewExtractor(&r.cfg.Search, r.logger).Extract(r.page)
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	for a := range attempts {
		if a.Err != nil {
			r.printf("  [%d] error: %v\n", a.Index+1, a.Err)
			continue
		}
		r.printf("  [%d] %s\n      %s\n      %s | %s\n", a.Index+1, a.Record.Title, a.Record.Link, a.Record.Source, a.Record.Summary)
	}
}

func (r *REPL) cmdSelect(args []string) {
	if len(args) == 0 {
		r.printf("Usage: select <css-selector>\n")
		return
	}
	if r.page == nil {
		r.printf("No page fetched yet. Use 'fetch <keyword>'.\n")
		return
	}
	doc, err := r.page.Document()
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	selector := strings.Join(args, " ")
	matches := doc.Find(selector)
	matches.Each(func(i int, sel *goquery.Selection) {
		r.printf("  [%d] %s\n", i+1, strings.Join(strings.Fields(sel.Text()), " "))
	})
	r.printf("%d matches for '%s'\n", matches.Length(), selector)
}

func (r *REPL) cmdRun(ctx context.Context, args []string) {
	if len(args) == 0 {
		r.printf("Usage: run <keyword> [pages]\n")
		return
	}
	req := types.SearchRequest{Keyword: args[0], NumPages: 1}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			r.printf("Error: pages must be a number\n")
			return
		}
		req.NumPages = n
	}

	eng := engine.New(r.cfg, r.logger)
	eng.SetFetcher(r.fetcher)
	eng.SetMetrics(r.metrics)
	eng.OnProgress(func(line string) { r.printf("  %s\n", line) })

	res, err := eng.Run(ctx, req)
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	r.last = res
	r.printf("Run complete: %d articles from %d pages in %s\n", len(res.Records), res.PagesFetched, res.Duration().Round(time.Millisecond))
}

func (r *REPL) cmdExport(args []string) {
	if r.last == nil {
		r.printf("Nothing to export. Use 'run <keyword> [pages]' first.\n")
		return
	}
	dir := r.cfg.Export.OutputDir
	if len(args) > 0 {
		dir = args[0]
	}
	exp, err := storage.NewExporter(r.cfg.Export.Format, r.cfg.Export.SheetName)
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	buf, err := exp.Export(r.last.Records)
	r.metrics.ExportsTotal.Add(1)
	if err != nil {
		r.metrics.ExportsFailed.Add(1)
		r.printf("Error: %v\n", err)
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	path := filepath.Join(dir, storage.FileName(r.cfg.Search.Label, r.last.Request.Keyword, exp.Extension(), r.last.FinishedAt))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	r.printf("  Wrote %d articles to %s\n", len(r.last.Records), path)
}

func (r *REPL) cmdConfig() {
	r.printf("  Endpoint:    %s\n", r.cfg.Search.Endpoint)
	r.printf("  Fetcher:     %s\n", r.cfg.Fetcher.Type)
	r.printf("  Container:   %s\n", r.cfg.Search.ContainerSelector)
	r.printf("  Delay:       %s\n", r.cfg.Search.PageDelay)
	r.printf("  Max pages:   %d\n", r.cfg.Search.MaxPages)
	r.printf("  Sentinel:    %s\n", r.cfg.Search.Sentinel)
	r.printf("  Output:      %s (%s)\n", r.cfg.Export.OutputDir, r.cfg.Export.Format)
}

func (r *REPL) cmdSet(args []string) {
	if len(args) < 2 {
		r.printf("Usage: set <key> <value>\n")
		r.printf("  Keys: delay, sentinel, container, label, format\n")
		return
	}

	key, val := args[0], strings.Join(args[1:], " ")
	switch key {
	case "delay":
		d, err := time.ParseDuration(val)
		if err != nil || d < 0 {
			r.printf("  Invalid duration: %s\n", val)
			return
		}
		r.cfg.Search.PageDelay = d
		r.printf("  Delay set to %s\n", d)
	case "sentinel":
		r.cfg.Search.Sentinel = val
		r.printf("  Sentinel set to %q\n", val)
	case "container":
		r.cfg.Search.ContainerSelector = val
		r.printf("  Container selector set to %s\n", val)
	case "label":
		r.cfg.Search.Label = val
		r.printf("  Label set to %s\n", val)
	case "format":
		if _, err := storage.NewExporter(val, r.cfg.Export.SheetName); err != nil {
			r.printf("  %v\n", err)
			return
		}
		r.cfg.Export.Format = val
		r.printf("  Output format set to %s\n", val)
	default:
		r.printf("  Unknown key: %s\n", key)
	}
}

func (r *REPL) cmdStats() {
	stats := r.metrics.Snapshot()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.printf("  %-20s %v\n", k, stats[k])
	}
}
