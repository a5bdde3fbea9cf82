package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/wxscrape/internal/api"
	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/engine"
	"github.com/IshaanNene/wxscrape/internal/fetcher"
	"github.com/IshaanNene/wxscrape/internal/storage"
)

var serveAddr string

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI",
		Long:  "Serve a form that takes a keyword and page count, runs the scraper and offers the result file for download.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, e.g. :8501")
	cmd.Flags().StringVarP(&fetcherType, "fetcher", "f", "", "page fetcher: http, browser, render")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(func(cfg *config.Config) {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if fetcherType != "" {
			cfg.Fetcher.Type = fetcherType
		}
	})
	if err != nil {
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
	srv := api.NewServer(cfg, eng, exporter, eng.Metrics(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", cfg.Server.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
