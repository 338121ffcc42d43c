package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"BBWPScreener/internal/collector"
	"BBWPScreener/internal/model"
	"BBWPScreener/internal/screener"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultUniverse is the USDT-quoted watch list scanned when none is configured.
var DefaultUniverse = []string{
	"BTC/USDT", "ETH/USDT", "BNB/USDT", "SOL/USDT", "XRP/USDT",
	"DOGE/USDT", "ADA/USDT", "AVAX/USDT", "DOT/USDT", "MATIC/USDT",
	"LINK/USDT", "LTC/USDT", "UNI/USDT", "ATOM/USDT", "NEAR/USDT",
	"ETC/USDT", "OP/USDT", "ARB/USDT", "FIL/USDT", "APT/USDT", "XLM/USDT",
}

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider string        `yaml:"provider"` // binance, yahoo or mock
		BaseURL  string        `yaml:"base_url"`
		Limit    int           `yaml:"limit"`
		Timeout  time.Duration `yaml:"timeout"`
		Retries  int           `yaml:"retries"`
	} `yaml:"data_source"`
	Universe  []string `yaml:"universe"`
	Timeframe string   `yaml:"timeframe"`
	Indicator struct {
		Period       int     `yaml:"period"`
		RecentWindow int     `yaml:"recent_window"`
		LowThreshold float64 `yaml:"low_threshold"`
	} `yaml:"indicator"`
	Workers int `yaml:"workers"`
	Cache   struct {
		Backend       string        `yaml:"backend"` // memory, sqlite, redis or none
		TTL           time.Duration `yaml:"ttl"`
		SQLitePath    string        `yaml:"sqlite_path"`
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
		KeyPrefix     string        `yaml:"key_prefix"`
	} `yaml:"cache"`
	Schedule map[string]string `yaml:"schedule"` // timeframe -> cron spec with seconds
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := newDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables already set in the process environment
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BBWP_TIMEFRAME"); v != "" {
		c.Timeframe = v
	}
	if v := os.Getenv("BBWP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BBWP_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Cache.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// newDefaultConfig seeds the numeric knobs before the YAML is decoded over them,
// so an explicit zero in the file is kept.
func newDefaultConfig() *Config {
	c := &Config{}
	p := screener.DefaultParams()
	c.DataSource.Limit = p.Limit
	c.DataSource.Timeout = 30 * time.Second
	c.DataSource.Retries = 2
	c.Indicator.Period = p.Period
	c.Indicator.RecentWindow = p.RecentWindow
	c.Indicator.LowThreshold = p.LowThreshold
	c.Workers = 1
	c.Cache.TTL = 10 * time.Minute
	return c
}

// applyDefaults fills settings that have no meaningful empty value.
func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "binance"
	}
	if len(c.Universe) == 0 {
		c.Universe = append([]string(nil), DefaultUniverse...)
	}
	if c.Timeframe == "" {
		c.Timeframe = string(model.Timeframe1d)
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/bbwp_cache.db"
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "bbwp:"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "."
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if _, err := model.ParseTimeframe(c.Timeframe); err != nil {
		return fmt.Errorf("timeframe: %w", err)
	}
	switch c.DataSource.Provider {
	case "binance", "yahoo", "mock":
	default:
		return fmt.Errorf("data_source.provider %q is not one of binance, yahoo, mock", c.DataSource.Provider)
	}
	if c.DataSource.Retries < 0 {
		return errors.New("data_source.retries must not be negative")
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	if c.DataSource.Limit < c.Indicator.Period {
		return fmt.Errorf("data_source.limit (%d) is below indicator.period (%d)", c.DataSource.Limit, c.Indicator.Period)
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	seen := make(map[string]bool, len(c.Universe))
	for _, s := range c.Universe {
		if strings.TrimSpace(s) == "" || strings.Contains(s, ",") {
			return fmt.Errorf("universe: malformed symbol %q", s)
		}
		if seen[s] {
			return fmt.Errorf("universe: duplicate symbol %q", s)
		}
		seen[s] = true
	}
	switch c.Cache.Backend {
	case "memory", "sqlite", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend %q is not one of memory, sqlite, redis, none", c.Cache.Backend)
	}
	if _, err := c.Schedules(); err != nil {
		return err
	}
	return nil
}

// ValidateTelegram checks that the bot credentials are set.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}

// DefaultTimeframe returns the parsed timeframe; call after Validate.
func (c *Config) DefaultTimeframe() model.Timeframe {
	tf, _ := model.ParseTimeframe(c.Timeframe)
	return tf
}

// Schedules parses the schedule section keyed by timeframe.
func (c *Config) Schedules() (map[model.Timeframe]string, error) {
	out := make(map[model.Timeframe]string, len(c.Schedule))
	for k, spec := range c.Schedule {
		tf, err := model.ParseTimeframe(k)
		if err != nil {
			return nil, fmt.Errorf("schedule: %w", err)
		}
		out[tf] = spec
	}
	return out, nil
}

// Params returns the core parameters for the aggregator.
func (c *Config) Params() screener.Params {
	return screener.Params{
		Period:       c.Indicator.Period,
		RecentWindow: c.Indicator.RecentWindow,
		LowThreshold: c.Indicator.LowThreshold,
		Limit:        c.DataSource.Limit,
	}
}

// HTTPOptions returns the transport settings shared by the HTTP fetchers.
func (c *Config) HTTPOptions() collector.HTTPOptions {
	return collector.HTTPOptions{
		BaseURL: c.DataSource.BaseURL,
		Proxy:   c.Proxy,
		Timeout: c.DataSource.Timeout,
		Retries: c.DataSource.Retries,
	}
}
