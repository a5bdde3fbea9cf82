package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/fetcher"
	"github.com/IshaanNene/wxscrape/internal/media"
	"github.com/IshaanNene/wxscrape/internal/repl"
	"github.com/IshaanNene/wxscrape/internal/storage"
)

var (
	imagesDir   string
	imagesLimit int
)

// imagesCmd creates the "images" subcommand.
func imagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images [url...]",
		Short: "Download images by URL",
		Long:  "Download each image (http(s) or base64 data URL) as image_<n>.<ext>, validating its format. Failures go to the error log.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImages,
	}
	cmd.Flags().StringVarP(&imagesDir, "out", "o", "", "output directory")
	cmd.Flags().IntVarP(&imagesLimit, "concurrency", "n", 4, "parallel downloads")
	return cmd
}

func runImages(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(func(cfg *config.Config) {
		if imagesDir != "" {
			cfg.Media.OutputDir = imagesDir
		}
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := media.NewDownloader(&cfg.Media, nil, logger)
	results, errs := d.DownloadBatch(ctx, args, imagesLimit)

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"#", "File", "Size", "Status"})
	for i := range args {
		if errs[i] != nil {
			t.AppendRow(table.Row{i + 1, "-", "-", errs[i].Error()})
			continue
		}
		t.AppendRow(table.Row{i + 1, results[i].LocalPath, media.HumanSize(results[i].Size), "ok"})
	}
	stats := d.Stats()
	t.AppendFooter(table.Row{"", fmt.Sprintf("downloaded %d", stats["downloaded"]), "", fmt.Sprintf("failed %d", stats["failed"])})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if failed := stats["failed"]; failed > 0 {
		return fmt.Errorf("%d of %d downloads failed, see %s", failed, len(args), cfg.Media.ErrorLogPath)
	}
	return nil
}

// inspectCmd creates the "inspect" subcommand.
func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file.xlsx]",
		Short: "Print the articles stored in an exported spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := storage.ReadXLSX(f)
			if err != nil {
				return err
			}
			printRecords(cmd, records)
			fmt.Fprintf(cmd.OutOrStdout(), "%d articles\n", len(records))
			return nil
		},
	}
}

// shellCmd creates the "shell" subcommand.
func shellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell for fetching pages and testing selectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(func(cfg *config.Config) {
				if fetcherType != "" {
					cfg.Fetcher.Type = fetcherType
				}
			})
			if err != nil {
				return err
			}
			f, err := fetcher.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create fetcher: %w", err)
			}
			defer f.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			repl.New(cfg, f, cmd.InOrStdin(), cmd.OutOrStdout(), logger).Start(ctx)
			return nil
		},
	}
	cmd.Flags().StringVarP(&fetcherType, "fetcher", "f", "", "page fetcher: http, browser, render")
	return cmd
}
