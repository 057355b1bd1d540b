package app

import (
	"slices"

	"github.com/pkg/errors"
)

// ErrConfig is returned by NewConfig for an invalid configuration.
var ErrConfig = errors.New("invalid configuration")

var (
	logLevels  = []string{"", "debug", "info", "warn", "error"}
	logFormats = []string{"", "text", "json"}
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // graph file
	StateDir     string // paused run snapshots
	StoreDir     string // saved graphs, in memory when empty

	LogLevel    string
	LogFormat   string
	Concurrency int
	DrawPath    string
	MetricsAddr string
}

func NewConfig(cfg Config) (*Config, error) {
	if !slices.Contains(logLevels, cfg.LogLevel) {
		return nil, errors.Wrapf(ErrConfig, "unknown log level %q", cfg.LogLevel)
	}
	if !slices.Contains(logFormats, cfg.LogFormat) {
		return nil, errors.Wrapf(ErrConfig, "unknown log format %q", cfg.LogFormat)
	}
	if cfg.Concurrency < 0 {
		return nil, errors.Wrapf(ErrConfig, "concurrency must not be negative, got %d", cfg.Concurrency)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}

	return &cfg, nil
}
