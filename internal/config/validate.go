package config

import (
	"errors"
	"fmt"
	"strings"

	"eod-normalizer/internal/corpaction"
)

// Validate checks the configuration and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must be >= 0, got %d", c.Engine.Workers))
	}
	if _, err := corpaction.ParseDividendPolicy(c.Engine.DividendPolicy); err != nil {
		errs = append(errs, fmt.Errorf("engine.dividend_policy: %w", err))
	}
	seen := make(map[string]bool, len(c.Engine.SourcePriority))
	for _, src := range c.Engine.SourcePriority {
		if strings.TrimSpace(src) == "" {
			errs = append(errs, errors.New("engine.source_priority contains an empty source"))
			continue
		}
		if seen[src] {
			errs = append(errs, fmt.Errorf("engine.source_priority lists %q twice", src))
		}
		seen[src] = true
	}

	if !c.Storage.UseMemory {
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required unless storage.use_memory is set"))
		}
		if c.Storage.ClickhouseDSN == "" {
			errs = append(errs, errors.New("storage.clickhouse_dsn is required unless storage.use_memory is set"))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug|info|warn|error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Output) {
	case "stdout":
	case "file", "both":
		if c.Logging.FilePath == "" {
			errs = append(errs, fmt.Errorf("logging.file_path is required for output %q", c.Logging.Output))
		}
	default:
		errs = append(errs, fmt.Errorf("logging.output %q is not one of stdout|file|both", c.Logging.Output))
	}

	return errors.Join(errs...)
}
