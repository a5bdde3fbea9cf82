package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("WXSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("wxscrape")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".wxscrape"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides bind to every key.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("search.portal_url", cfg.Search.PortalURL)
	v.SetDefault("search.endpoint", cfg.Search.Endpoint)
	v.SetDefault("search.type", cfg.Search.Type)
	v.SetDefault("search.container_selector", cfg.Search.ContainerSelector)
	v.SetDefault("search.page_delay", cfg.Search.PageDelay)
	v.SetDefault("search.max_pages", cfg.Search.MaxPages)
	v.SetDefault("search.label", cfg.Search.Label)
	v.SetDefault("search.sentinel", cfg.Search.Sentinel)
	v.SetDefault("search.default_keyword", cfg.Search.DefaultKeyword)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.wait_timeout", cfg.Browser.WaitTimeout)
	v.SetDefault("browser.settle_delay", cfg.Browser.SettleDelay)
	v.SetDefault("browser.query_selector", cfg.Browser.QuerySelect)
	v.SetDefault("browser.next_page_text", cfg.Browser.NextPageText)

	v.SetDefault("export.format", cfg.Export.Format)
	v.SetDefault("export.sheet_name", cfg.Export.SheetName)
	v.SetDefault("export.output_dir", cfg.Export.OutputDir)

	v.SetDefault("media.output_dir", cfg.Media.OutputDir)
	v.SetDefault("media.error_log_path", cfg.Media.ErrorLogPath)
	v.SetDefault("media.timeout", cfg.Media.Timeout)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.max_runs", cfg.Server.MaxRuns)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
