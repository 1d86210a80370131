package config

import (
	"fmt"
	"strings"

	"fxlens/internal/market"
	"fxlens/internal/scheduler"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

func validate(c *Config) error {
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", c.App.LogLevel)
	}
	if _, ok := market.LookupAsset(c.Selection.Symbol); !ok {
		return fmt.Errorf("selection.symbol %q is not a known asset", c.Selection.Symbol)
	}
	if _, ok := scheduler.ParseIntervalDuration(c.Selection.Interval); !ok {
		return fmt.Errorf("selection.interval %q is invalid", c.Selection.Interval)
	}
	if c.Enrich.Enabled && strings.TrimSpace(c.Enrich.APIKey) == "" {
		return fmt.Errorf("enrich.enabled requires enrich.api_key (or FXLENS_ENRICH_API_KEY)")
	}
	return nil
}
