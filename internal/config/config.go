package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for wxscrape.
type Config struct {
	Search  SearchConfig  `mapstructure:"search"  yaml:"search"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Export  ExportConfig  `mapstructure:"export"  yaml:"export"`
	Media   MediaConfig   `mapstructure:"media"   yaml:"media"`
	Server  ServerConfig  `mapstructure:"server"  yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// SearchConfig describes the search portal and the result page layout.
type SearchConfig struct {
	PortalURL         string        `mapstructure:"portal_url"         yaml:"portal_url"`
	Endpoint          string        `mapstructure:"endpoint"           yaml:"endpoint"`
	Type              int           `mapstructure:"type"               yaml:"type"`
	ContainerSelector string        `mapstructure:"container_selector" yaml:"container_selector"`
	PageDelay         time.Duration `mapstructure:"page_delay"         yaml:"page_delay"`
	MaxPages          int           `mapstructure:"max_pages"          yaml:"max_pages"`
	Label             string        `mapstructure:"label"              yaml:"label"`
	Sentinel          string        `mapstructure:"sentinel"           yaml:"sentinel"`
	DefaultKeyword    string        `mapstructure:"default_keyword"    yaml:"default_keyword"`
}

// FetcherConfig controls how result pages are obtained.
type FetcherConfig struct {
	Type           string        `mapstructure:"type"            yaml:"type"` // http, browser, render
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`
	UserAgents     []string      `mapstructure:"user_agents"     yaml:"user_agents"`
}

// BrowserConfig controls the headless browser strategies.
type BrowserConfig struct {
	Headless     bool          `mapstructure:"headless"       yaml:"headless"`
	Stealth      bool          `mapstructure:"stealth"        yaml:"stealth"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"   yaml:"wait_timeout"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"   yaml:"settle_delay"`
	QuerySelect  string        `mapstructure:"query_selector" yaml:"query_selector"`
	NextPageText string        `mapstructure:"next_page_text" yaml:"next_page_text"`
}

// ExportConfig controls the downloadable file.
type ExportConfig struct {
	Format    string `mapstructure:"format"     yaml:"format"` // xlsx, csv
	SheetName string `mapstructure:"sheet_name" yaml:"sheet_name"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// MediaConfig controls the image downloader.
type MediaConfig struct {
	OutputDir    string        `mapstructure:"output_dir"     yaml:"output_dir"`
	ErrorLogPath string        `mapstructure:"error_log_path" yaml:"error_log_path"`
	Timeout      time.Duration `mapstructure:"timeout"        yaml:"timeout"`
}

// ServerConfig controls the web UI.
type ServerConfig struct {
	Addr    string `mapstructure:"addr"     yaml:"addr"`
	MaxRuns int    `mapstructure:"max_runs" yaml:"max_runs"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			PortalURL:         "https://weixin.sogou.com/",
			Endpoint:          "https://weixin.sogou.com/weixin",
			Type:              2,
			ContainerSelector: "div.txt-box",
			PageDelay:         5 * time.Second,
			MaxPages:          20,
			Label:             "AI_微信",
			Sentinel:          "N/A",
			DefaultKeyword:    "AI绘画",
		},
		Fetcher: FetcherConfig{
			Type:           "http",
			RequestTimeout: 30 * time.Second,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Browser: BrowserConfig{
			Headless:     true,
			Stealth:      true,
			WaitTimeout:  10 * time.Second,
			SettleDelay:  2 * time.Second,
			QuerySelect:  "#query",
			NextPageText: "下一页",
		},
		Export: ExportConfig{
			Format:    "xlsx",
			SheetName: "Articles",
			OutputDir: ".",
		},
		Media: MediaConfig{
			OutputDir:    "./images",
			ErrorLogPath: "./images/download_errors.log",
			Timeout:      10 * time.Second,
		},
		Server: ServerConfig{
			Addr:    ":8501",
			MaxRuns: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
