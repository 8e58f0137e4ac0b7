package cfg

import (
	"time"

	"github.com/lysyi3m/rss-harvest/app/polling"
)

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	FeedsDir     string
	Port         string
	BaseUrl      string
	WorkerCount  int
	APIAccessKey string

	// Fetching
	UserAgent    string
	FetchTimeout time.Duration
	MaxBodySize  int64

	// Polling
	DefaultPollInterval time.Duration
	MinPollInterval     time.Duration
	BackoffFactor       float64
	BackoffCeiling      time.Duration

	// Application metadata
	Timezone string
	Debug    bool
	LogFile  string
	Version  string
}

// PollPolicy returns the adaptive polling policy described by the configuration.
func (c *Cfg) PollPolicy() polling.Policy {
	return polling.Policy{
		Default: c.DefaultPollInterval,
		Minimum: c.MinPollInterval,
		Ceiling: c.BackoffCeiling,
		Factor:  c.BackoffFactor,
	}
}
