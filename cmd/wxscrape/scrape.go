package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/engine"
	"github.com/IshaanNene/wxscrape/internal/fetcher"
	"github.com/IshaanNene/wxscrape/internal/storage"
	"github.com/IshaanNene/wxscrape/internal/types"
)

var (
	numPages    int
	fetcherType string
	outFormat   string
	outDir      string
	pageDelay   string
	headful     bool
	showRecords bool
)

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [keyword]",
		Short: "Scrape articles for a keyword and export them",
		Long:  "Fetch the requested number of result pages for a keyword and write the collected articles to a spreadsheet.",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := parseDelay(pageDelay)
			return err
		},
		RunE: runScrape,
	}

	cmd.Flags().IntVarP(&numPages, "pages", "p", 1, "number of result pages to fetch")
	cmd.Flags().StringVarP(&fetcherType, "fetcher", "f", "", "page fetcher: http, browser, render")
	cmd.Flags().StringVar(&outFormat, "format", "", "export format: xlsx, csv")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory")
	cmd.Flags().StringVar(&pageDelay, "delay", "", "pause between result pages, e.g. 5s")
	cmd.Flags().BoolVar(&headful, "headful", false, "show the browser window (browser fetcher)")
	cmd.Flags().BoolVar(&showRecords, "show", false, "print the collected articles as a table")

	return cmd
}

// runScrape executes the scrape command.
func runScrape(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(applyScrapeFlags)
	if err != nil {
		return err
	}

	keyword := cfg.Search.DefaultKeyword
	if len(args) == 1 {
		keyword = args[0]
	}
	req := types.SearchRequest{Keyword: strings.TrimSpace(keyword), NumPages: numPages}
	if err := req.Validate(cfg.Search.MaxPages); err != nil {
		return err
	}

	exporter, err := storage.NewExporter(cfg.Export.Format, cfg.Export.SheetName)
	if err != nil {
		return err
	}

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	eng := engine.New(cfg, logger)
	eng.SetFetcher(f)
	eng.OnProgress(func(line string) {
		fmt.Fprintln(cmd.ErrOrStderr(), "  "+line)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.Run(ctx, req)
	if err != nil {
		return err
	}

	buf, err := exporter.Export(result.Records)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Export.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	name := storage.FileName(cfg.Search.Label, req.Keyword, exporter.Extension(), result.FinishedAt)
	path := filepath.Join(cfg.Export.OutputDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	logger.Info("export written", "path", path, "records", len(result.Records))
	printSummary(cmd, result, path, f.Type())
	if showRecords {
		printRecords(cmd, result.Records)
	}
	return nil
}

func applyScrapeFlags(cfg *config.Config) {
	if fetcherType != "" {
		cfg.Fetcher.Type = strings.ToLower(fetcherType)
	}
	if outFormat != "" {
		cfg.Export.Format = strings.ToLower(outFormat)
	}
	if outDir != "" {
		cfg.Export.OutputDir = outDir
	}
	if d, err := parseDelay(pageDelay); err == nil && pageDelay != "" {
		cfg.Search.PageDelay = d
	}
	if headful {
		cfg.Browser.Headless = false
	}
}

func printSummary(cmd *cobra.Command, result *types.RunResult, path, strategy string) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle("Scrape complete")
	t.AppendRows([]table.Row{
		{"Keyword", result.Request.Keyword},
		{"Fetcher", strategy},
		{"Pages", fmt.Sprintf("%d of %d", result.PagesFetched, result.Request.NumPages)},
		{"Articles", len(result.Records)},
		{"Elapsed", result.Duration().Round(time.Millisecond)},
		{"Output", path},
	})
	if result.StoppedEarly {
		t.AppendRow(table.Row{"Stopped early", result.StopReason})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printRecords(cmd *cobra.Command, records []types.ArticleRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	header := table.Row{"#"}
	for _, c := range types.Columns() {
		header = append(header, c)
	}
	t.AppendHeader(header)
	for i, rec := range records {
		t.AppendRow(table.Row{i + 1, truncate(rec.Title, 40), truncate(rec.Summary, 60), rec.Link, rec.Source})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// parseDelay parses the --delay flag. An empty value means "use the config".
func parseDelay(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid --delay %q: %w", v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid --delay %q: must not be negative", v)
	}
	return d, nil
}
