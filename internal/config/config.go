// Package config 负责加载与校验主配置（YAML，viper + mapstructure）。
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"fxlens/internal/analysis/indicator"
)

// Config 是 fxlens 的主配置载体。
type Config struct {
	App       AppConfig        `toml:"app"`
	Market    MarketConfig     `toml:"market"`
	Enrich    EnrichConfig     `toml:"enrich"`
	Indicator indicator.Config `toml:"indicator"`
	Selection SelectionConfig  `toml:"selection"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
}

type MarketConfig struct {
	MaxCached          int    `toml:"max_cached"`
	HistoryLimit       int    `toml:"history_limit"`
	BinanceRESTURL     string `toml:"binance_rest_url"`
	FrankfurterURL     string `toml:"frankfurter_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
}

type EnrichConfig struct {
	Enabled                bool   `toml:"enabled"`
	BaseURL                string `toml:"base_url"`
	APIKey                 string `toml:"api_key"`
	Model                  string `toml:"model"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	MaxRetries             int    `toml:"max_retries"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
	DebounceSeconds        int    `toml:"debounce_seconds"`
}

// SelectionConfig 启动时的默认标的与周期。
type SelectionConfig struct {
	Symbol   string `toml:"symbol"`
	Interval string `toml:"interval"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8085"
	}
	if c.Market.MaxCached <= 0 {
		c.Market.MaxCached = 500
	}
	if c.Market.HistoryLimit <= 0 {
		c.Market.HistoryLimit = 500
	}
	if c.Market.HTTPTimeoutSeconds <= 0 {
		c.Market.HTTPTimeoutSeconds = 15
	}
	if c.Enrich.APIKey == "" {
		c.Enrich.APIKey = os.Getenv("FXLENS_ENRICH_API_KEY")
	}
	if c.Enrich.Model == "" {
		c.Enrich.Model = "gpt-4o-mini"
	}
	if c.Enrich.TimeoutSeconds <= 0 {
		c.Enrich.TimeoutSeconds = 60
	}
	if c.Enrich.MaxRetries <= 0 {
		c.Enrich.MaxRetries = 2
	}
	if c.Enrich.BreakerThreshold <= 0 {
		c.Enrich.BreakerThreshold = 3
	}
	if c.Enrich.BreakerCooldownSeconds <= 0 {
		c.Enrich.BreakerCooldownSeconds = 120
	}
	if c.Enrich.DebounceSeconds <= 0 {
		c.Enrich.DebounceSeconds = 5
	}
	if c.Selection.Symbol == "" {
		c.Selection.Symbol = "BTCUSDT"
	}
	if c.Selection.Interval == "" {
		c.Selection.Interval = "1h"
	}
	c.Indicator = c.Indicator.WithDefaults()
}
