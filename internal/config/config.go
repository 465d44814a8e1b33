package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "WB"

// Config represents the complete application configuration
type Config struct {
	Console   ConsoleConfig   `yaml:"console" envconfig:"CONSOLE"`
	Browser   BrowserConfig   `yaml:"browser" envconfig:"BROWSER"`
	Delays    DelaysConfig    `yaml:"delays" envconfig:"DELAYS"`
	Waits     WaitsConfig     `yaml:"waits" envconfig:"WAITS"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Auth      AuthConfig      `yaml:"auth" envconfig:"AUTH"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	API       APIConfig       `yaml:"api" envconfig:"API"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Sheets    SheetsConfig    `yaml:"sheets" envconfig:"SHEETS"`
	Cabinets  CabinetList     `yaml:"cabinets" envconfig:"CABINETS" validate:"required,min=1,dive"`
}

// ConsoleConfig describes the seller console entry point.
type ConsoleConfig struct {
	URL string `yaml:"url" envconfig:"URL" validate:"required,url"`
	// AuthHosts are URL substrings that identify the sign-in pages.
	AuthHosts []string `yaml:"auth_hosts" envconfig:"AUTH_HOSTS" validate:"required,min=1,dive,required"`
}

// BrowserConfig contains the browser launch options
type BrowserConfig struct {
	BinaryPath  string `yaml:"binary_path" envconfig:"BINARY_PATH"`
	ProfileDir  string `yaml:"profile_dir" envconfig:"PROFILE_DIR"`
	ProfileName string `yaml:"profile_name" envconfig:"PROFILE_NAME"`
	Headless    bool   `yaml:"headless" envconfig:"HEADLESS"`
	UserAgent   string `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// DelaysConfig holds the pauses that pace interaction with the console.
type DelaysConfig struct {
	BeforeClick     time.Duration `yaml:"before_click" envconfig:"BEFORE_CLICK" validate:"gte=0"`
	AfterClick      time.Duration `yaml:"after_click" envconfig:"AFTER_CLICK" validate:"gte=0"`
	BeforeType      time.Duration `yaml:"before_type" envconfig:"BEFORE_TYPE" validate:"gte=0"`
	AfterType       time.Duration `yaml:"after_type" envconfig:"AFTER_TYPE" validate:"gte=0"`
	BetweenKeys     time.Duration `yaml:"between_keys" envconfig:"BETWEEN_KEYS" validate:"gte=0"`
	PageLoad        time.Duration `yaml:"page_load" envconfig:"PAGE_LOAD" validate:"gte=0"`
	BetweenActions  time.Duration `yaml:"between_actions" envconfig:"BETWEEN_ACTIONS" validate:"gte=0"`
	BetweenCabinets time.Duration `yaml:"between_cabinets" envconfig:"BETWEEN_CABINETS" validate:"gte=0"`
}

// WaitsConfig bounds every wait the browser flows perform.
type WaitsConfig struct {
	Element        time.Duration `yaml:"element" envconfig:"ELEMENT" validate:"gt=0"`
	Probe          time.Duration `yaml:"probe" envconfig:"PROBE" validate:"gt=0"`
	Download       time.Duration `yaml:"download" envconfig:"DOWNLOAD" validate:"gt=0"`
	DownloadPoll   time.Duration `yaml:"download_poll" envconfig:"DOWNLOAD_POLL" validate:"gt=0"`
	AuthCycles     int           `yaml:"auth_cycles" envconfig:"AUTH_CYCLES" validate:"gt=0"`
	UnknownBackoff time.Duration `yaml:"unknown_backoff" envconfig:"UNKNOWN_BACKOFF" validate:"gte=0"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	// BaseDir anchors every relative path. Empty means the executable directory.
	BaseDir         string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DownloadsDir    string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR" validate:"required"`
	ArchiveDir      string `yaml:"archive_dir" envconfig:"ARCHIVE_DIR" validate:"required"`
	LogsDir         string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
	PagesDir        string `yaml:"pages_dir" envconfig:"PAGES_DIR" validate:"required"`
	HeaderTemplate  string `yaml:"header_template" envconfig:"HEADER_TEMPLATE"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// AuthConfig carries the account identity used at sign-in.
type AuthConfig struct {
	Phone string `yaml:"phone" envconfig:"PHONE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console stdout file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// APIConfig configures the marketplace HTTP API fetcher.
type APIConfig struct {
	StatisticsURL string        `yaml:"statistics_url" envconfig:"STATISTICS_URL" validate:"required,url"`
	ContentURL    string        `yaml:"content_url" envconfig:"CONTENT_URL" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	RPS           float64       `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst         int           `yaml:"burst" envconfig:"BURST" validate:"gt=0"`
	RetryCount    int           `yaml:"retry_count" envconfig:"RETRY_COUNT" validate:"gte=0"`
	// Tokens maps cabinet name to its API token.
	Tokens map[string]string `yaml:"tokens" envconfig:"TOKENS"`
}

// TelemetryConfig toggles tracing and run metrics.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" envconfig:"ENABLED"`
	Environment string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	SampleRate  float64 `yaml:"sample_rate" envconfig:"SAMPLE_RATE" validate:"gte=0,lte=1"`
	TracesFile  string  `yaml:"traces_file" envconfig:"TRACES_FILE"`
	MetricsFile string  `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// SheetsConfig configures the optional Google Sheets upload.
type SheetsConfig struct {
	Enabled       bool   `yaml:"enabled" envconfig:"ENABLED"`
	SpreadsheetID string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID" validate:"required_if=Enabled true"`
	Endpoint      string `yaml:"endpoint" envconfig:"ENDPOINT" validate:"omitempty,url"`
}

// Load loads configuration from the first config file found in the usual
// locations and from environment variables.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom layers defaults, the YAML file at path (skipped when empty) and
// environment variables, in that order, then validates the result.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and normalizes a few values.
func (c *Config) Validate() error {
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	if c.Logging.Output == "stdout" {
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "wbreports.log"
	}

	if err := validator.New().Struct(c); err != nil {
		return err
	}
	return c.Cabinets.checkUnique()
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Console: ConsoleConfig{
			URL:       "https://seller.wildberries.ru/analytics-reports/sales",
			AuthHosts: []string{"seller-auth.wildberries.ru", "/login"},
		},
		Browser: BrowserConfig{
			ProfileDir:  "chrome_profile",
			ProfileName: "Profile 2",
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Delays: DelaysConfig{
			BeforeClick:     1500 * time.Millisecond,
			AfterClick:      1500 * time.Millisecond,
			BeforeType:      time.Second,
			AfterType:       1500 * time.Millisecond,
			BetweenKeys:     120 * time.Millisecond,
			PageLoad:        4 * time.Second,
			BetweenActions:  1500 * time.Millisecond,
			BetweenCabinets: 3 * time.Second,
		},
		Waits: WaitsConfig{
			Element:        10 * time.Second,
			Probe:          3 * time.Second,
			Download:       60 * time.Second,
			DownloadPoll:   time.Second,
			AuthCycles:     10,
			UnknownBackoff: 30 * time.Second,
		},
		Paths: PathsConfig{
			DownloadsDir:    "downloads",
			ArchiveDir:      "data",
			LogsDir:         "logs",
			PagesDir:        "pages_code",
			CredentialsFile: "credentials.json",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "both",
			FilePath: "wbreports.log",
		},
		API: APIConfig{
			StatisticsURL: "https://statistics-api.wildberries.ru",
			ContentURL:    "https://suppliers-api.wildberries.ru",
			Timeout:       60 * time.Second,
			RPS:           1,
			Burst:         1,
			RetryCount:    3,
		},
		Telemetry: TelemetryConfig{
			Environment: "production",
			SampleRate:  1.0,
			TracesFile:  "traces.json",
			MetricsFile: "wbreports.prom",
		},
		Cabinets: DefaultCabinets(),
	}
}
