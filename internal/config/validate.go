package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Search.Endpoint); err != nil {
		return fmt.Errorf("search.endpoint: %w", err)
	}
	if err := ValidateURL(cfg.Search.PortalURL); err != nil {
		return fmt.Errorf("search.portal_url: %w", err)
	}
	if cfg.Search.ContainerSelector == "" {
		return fmt.Errorf("search.container_selector must not be empty")
	}
	if cfg.Search.PageDelay < 0 {
		return fmt.Errorf("search.page_delay must be >= 0")
	}
	if cfg.Search.MaxPages < 1 || cfg.Search.MaxPages > 100 {
		return fmt.Errorf("search.max_pages must be 1-100, got %d", cfg.Search.MaxPages)
	}
	if cfg.Search.Sentinel == "" {
		return fmt.Errorf("search.sentinel must not be empty")
	}

	switch cfg.Fetcher.Type {
	case "http", "browser", "render":
	default:
		return fmt.Errorf("fetcher.type must be 'http', 'browser' or 'render', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}

	if cfg.Browser.WaitTimeout <= 0 {
		return fmt.Errorf("browser.wait_timeout must be > 0")
	}
	if cfg.Browser.NextPageText == "" {
		return fmt.Errorf("browser.next_page_text must not be empty")
	}

	if cfg.Export.Format != "xlsx" && cfg.Export.Format != "csv" {
		return fmt.Errorf("export.format must be 'xlsx' or 'csv', got %q", cfg.Export.Format)
	}
	if cfg.Export.SheetName == "" || len([]rune(cfg.Export.SheetName)) > 31 {
		return fmt.Errorf("export.sheet_name must be 1-31 characters, got %q", cfg.Export.SheetName)
	}

	if cfg.Media.Timeout <= 0 {
		return fmt.Errorf("media.timeout must be > 0")
	}

	if cfg.Server.MaxRuns < 1 {
		return fmt.Errorf("server.max_runs must be >= 1, got %d", cfg.Server.MaxRuns)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("logging.format must be 'text', 'json' or 'pretty', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
