package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/rss-harvest.db" description:"SQLite database file"`

	// Application configuration
	FeedsDir     string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing seed feed files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://feeds.example.com)"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed polling"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Fetching
	UserAgent    string        `long:"user-agent" env:"USER_AGENT" default:"RSS Harvest/1.0" description:"User agent string for HTTP requests"`
	FetchTimeout time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"Timeout for a single feed fetch"`
	MaxBodySize  int64         `long:"max-body-size" env:"MAX_BODY_SIZE" default:"10485760" description:"Maximum feed document size in bytes"`

	// Polling
	DefaultPollInterval time.Duration `long:"default-poll-interval" env:"DEFAULT_POLL_INTERVAL" default:"30m" description:"Poll interval for feeds that declare no ttl"`
	MinPollInterval     time.Duration `long:"min-poll-interval" env:"MIN_POLL_INTERVAL" default:"1m" description:"Lower bound for any poll interval"`
	BackoffFactor       float64       `long:"backoff-factor" env:"BACKOFF_FACTOR" default:"2" description:"Multiplier applied to the interval after a failed poll"`
	BackoffCeiling      time.Duration `long:"backoff-ceiling" env:"BACKOFF_CEILING" default:"24h" description:"Upper bound for any poll interval"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFile  string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file, rotated by size"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses the given arguments (and the environment) into the global configuration.
// It returns nil, nil when help was requested.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:              raw.DBPath,
		FeedsDir:            raw.FeedsDir,
		Port:                raw.Port,
		BaseUrl:             raw.BaseUrl,
		WorkerCount:         raw.WorkerCount,
		APIAccessKey:        raw.APIAccessKey,
		UserAgent:           raw.UserAgent,
		FetchTimeout:        raw.FetchTimeout,
		MaxBodySize:         raw.MaxBodySize,
		DefaultPollInterval: raw.DefaultPollInterval,
		MinPollInterval:     raw.MinPollInterval,
		BackoffFactor:       raw.BackoffFactor,
		BackoffCeiling:      raw.BackoffCeiling,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		LogFile:             raw.LogFile,
		Version:             GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be positive")
	}
	if err := c.PollPolicy().Validate(); err != nil {
		return fmt.Errorf("invalid polling configuration: %w", err)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
