package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. STOCKFILL_SERVER_URL
const EnvPrefix = "STOCKFILL"

// Config represents the entire application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Output      OutputConfig      `mapstructure:"output"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Download    DownloadConfig    `mapstructure:"download"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Processing  ProcessingConfig  `mapstructure:"processing"`
	StockData   StockDataConfig   `mapstructure:"stock_data"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig contains completion server settings
type ServerConfig struct {
	URL             string `mapstructure:"url"`
	Timeout         string `mapstructure:"timeout"`
	DownloadTimeout string `mapstructure:"download_timeout"`
	SkipTLSVerify   bool   `mapstructure:"skip_tls_verify"`
}

// OutputConfig contains where result files are saved
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	BufferSizeKB int    `mapstructure:"buffer_size_kb"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// DownloadConfig contains fallback chain settings
type DownloadConfig struct {
	Strategies         []string `mapstructure:"strategies"`
	AssumeSuccessDelay string   `mapstructure:"assume_success_delay"`
	SpoolReleaseDelay  string   `mapstructure:"spool_release_delay"`
	ProgressInterval   string   `mapstructure:"progress_interval"`
}

// BrowserConfig contains the browser driver settings used by the link and window strategies
type BrowserConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	DebuggerURL       string   `mapstructure:"debugger_url"`
	Bin               string   `mapstructure:"bin"`
	Headless          bool     `mapstructure:"headless"`
	Flags             []string `mapstructure:"flags"`
	LinkReleaseDelay  string   `mapstructure:"link_release_delay"`
	NavigationTimeout string   `mapstructure:"navigation_timeout"`
}

// ProcessingConfig contains the default processing choices
type ProcessingConfig struct {
	APISource       string `mapstructure:"api_source"`
	CrossValidation bool   `mapstructure:"cross_validation"`
	Optimization    bool   `mapstructure:"optimization"`
}

// StockDataConfig contains the reference dataset watcher settings
type StockDataConfig struct {
	WatchDir     string `mapstructure:"watch_dir"`
	Debounce     string `mapstructure:"debounce"`
	MaxRetries   int    `mapstructure:"max_retries"`
	ScanExisting bool   `mapstructure:"scan_existing"`
}

// MaintenanceConfig contains cleanup settings
type MaintenanceConfig struct {
	TempFileMaxAge string `mapstructure:"temp_file_max_age"`
	HistoryMaxAge  string `mapstructure:"history_max_age"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	// Textfile is replaced on exit when set, for the node exporter textfile collector.
	// Counters start at zero on every invocation and cover that run only.
	Textfile string `mapstructure:"textfile"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "http://localhost:5000")
	v.SetDefault("server.timeout", "120s")
	v.SetDefault("server.download_timeout", "10m")
	v.SetDefault("server.skip_tls_verify", false)
	v.SetDefault("output.dir", "downloads")
	v.SetDefault("output.buffer_size_kb", 256)
	v.SetDefault("database.path", "")
	v.SetDefault("download.strategies", domain.KnownStrategies)
	v.SetDefault("download.assume_success_delay", "2s")
	v.SetDefault("download.spool_release_delay", "1s")
	v.SetDefault("download.progress_interval", "500ms")
	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.debugger_url", "")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.flags", []string{})
	v.SetDefault("browser.link_release_delay", "1s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("processing.api_source", "akshare")
	v.SetDefault("processing.cross_validation", false)
	v.SetDefault("processing.optimization", true)
	v.SetDefault("stock_data.watch_dir", "stock_data/watch")
	v.SetDefault("stock_data.debounce", "500ms")
	v.SetDefault("stock_data.max_retries", 3)
	v.SetDefault("stock_data.scan_existing", true)
	v.SetDefault("maintenance.temp_file_max_age", "24h")
	v.SetDefault("maintenance.history_max_age", "720h")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.textfile", "")
}

// Load loads configuration from the optional file at configPath.
// A .env file next to the working directory is loaded first so that
// STOCKFILL_* variables in it override file values.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server.url: %q", c.Server.URL)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.BufferSizeKB < 0 {
		return fmt.Errorf("output.buffer_size_kb must not be negative")
	}

	seen := make(map[string]bool)
	for _, s := range c.Download.Strategies {
		if !domain.IsKnownStrategy(s) {
			return fmt.Errorf("invalid download.strategies: unknown strategy %q", s)
		}
		if seen[s] {
			return fmt.Errorf("invalid download.strategies: duplicate strategy %q", s)
		}
		seen[s] = true
	}

	durations := map[string]string{
		"server.timeout":                c.Server.Timeout,
		"server.download_timeout":       c.Server.DownloadTimeout,
		"download.assume_success_delay": c.Download.AssumeSuccessDelay,
		"download.spool_release_delay":  c.Download.SpoolReleaseDelay,
		"download.progress_interval":    c.Download.ProgressInterval,
		"browser.link_release_delay":    c.Browser.LinkReleaseDelay,
		"browser.navigation_timeout":    c.Browser.NavigationTimeout,
		"stock_data.debounce":           c.StockData.Debounce,
		"maintenance.temp_file_max_age": c.Maintenance.TempFileMaxAge,
		"maintenance.history_max_age":   c.Maintenance.HistoryMaxAge,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if c.Processing.APISource == "" {
		return fmt.Errorf("processing.api_source is required")
	}
	if c.StockData.MaxRetries < 0 {
		return fmt.Errorf("stock_data.max_retries must not be negative")
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// parseDuration returns value as a duration, or fallback when unset or invalid
func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// GetTimeout returns the API request timeout
func (c *ServerConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 120*time.Second)
}

// GetDownloadTimeout returns the artifact download timeout
func (c *ServerConfig) GetDownloadTimeout() time.Duration {
	return parseDuration(c.DownloadTimeout, 10*time.Minute)
}

// GetBufferSize returns the copy buffer size in bytes
func (c *OutputConfig) GetBufferSize() int {
	if c.BufferSizeKB <= 0 {
		return 256 * 1024
	}
	return c.BufferSizeKB * 1024
}

// GetDatabasePath returns the database path, defaulting to a file in the output dir
func (c *Config) GetDatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Output.Dir, ".stockfill", "stockfill.db")
}

// GetAssumeSuccessDelay returns how long the link strategy waits before reporting
func (c *DownloadConfig) GetAssumeSuccessDelay() time.Duration {
	return parseDuration(c.AssumeSuccessDelay, 2*time.Second)
}

// GetSpoolReleaseDelay returns how long a buffered blob is kept after saving
func (c *DownloadConfig) GetSpoolReleaseDelay() time.Duration {
	return parseDuration(c.SpoolReleaseDelay, time.Second)
}

// GetProgressInterval returns the minimum interval between progress reports
func (c *DownloadConfig) GetProgressInterval() time.Duration {
	return parseDuration(c.ProgressInterval, 500*time.Millisecond)
}

// GetLinkReleaseDelay returns how long the helper anchor stays in the page
func (c *BrowserConfig) GetLinkReleaseDelay() time.Duration {
	return parseDuration(c.LinkReleaseDelay, time.Second)
}

// GetNavigationTimeout returns the browser navigation timeout
func (c *BrowserConfig) GetNavigationTimeout() time.Duration {
	return parseDuration(c.NavigationTimeout, 30*time.Second)
}

// GetDebounce returns the watcher debounce interval
func (c *StockDataConfig) GetDebounce() time.Duration {
	return parseDuration(c.Debounce, 500*time.Millisecond)
}

// GetTempFileMaxAge returns the age after which temp files are removed
func (c *MaintenanceConfig) GetTempFileMaxAge() time.Duration {
	return parseDuration(c.TempFileMaxAge, 24*time.Hour)
}

// GetHistoryMaxAge returns the age after which download history is removed
func (c *MaintenanceConfig) GetHistoryMaxAge() time.Duration {
	return parseDuration(c.HistoryMaxAge, 30*24*time.Hour)
}
