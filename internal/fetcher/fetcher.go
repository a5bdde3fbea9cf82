package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/types"
)

// PageFetcher obtains the markup of one search result page.
type PageFetcher interface {
	// FetchPage returns the raw markup of the given 1-based result page.
	FetchPage(ctx context.Context, keyword string, page int) (*types.Page, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New creates the fetcher selected by cfg.Fetcher.Type.
func New(cfg *config.Config, logger *slog.Logger) (PageFetcher, error) {
	switch cfg.Fetcher.Type {
	case "http", "":
		return NewHTTPFetcher(cfg, logger)
	case "browser":
		return NewBrowserFetcher(cfg, logger)
	case "render":
		return NewRenderFetcher(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", cfg.Fetcher.Type)
	}
}

// SearchURL builds the parameterised search endpoint address for a page.
func SearchURL(cfg *config.SearchConfig, keyword string, page int) (string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("type", strconv.Itoa(cfg.Type))
	q.Set("query", keyword)
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
