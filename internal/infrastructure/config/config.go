package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrConfiguration 配置缺失或非法
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	Monitor struct {
		Interval      time.Duration `toml:"interval"`
		ShutdownGrace time.Duration `toml:"shutdown_grace"`
		Workers       int           `toml:"workers"`
	} `toml:"monitor"`

	Detector struct {
		FundingThreshold float64 `toml:"funding_threshold"`
		OISurgeThreshold float64 `toml:"oi_surge_threshold"`
		WatchRatio       float64 `toml:"watch_ratio"`
		MinHistory       int     `toml:"min_history"`
		RecentWindow     int     `toml:"recent_window"`
		BaselineWindow   int     `toml:"baseline_window"`
	} `toml:"detector"`

	Exchange struct {
		BaseURL           string        `toml:"base_url"`
		DataBaseURL       string        `toml:"data_base_url"`
		QuoteAsset        string        `toml:"quote_asset"`
		ContractType      string        `toml:"contract_type"`
		PositioningPeriod string        `toml:"positioning_period"`
		Pacing            time.Duration `toml:"pacing"`
		Timeout           time.Duration `toml:"timeout"`
		RetryAttempts     int           `toml:"retry_attempts"`
		BackoffFactor     time.Duration `toml:"backoff_factor"`
		UserAgent         string        `toml:"user_agent"`
	} `toml:"exchange"`

	Storage struct {
		Backend      string `toml:"backend"` // csv | sqlite | postgres
		Dir          string `toml:"dir"`
		Fsync        bool   `toml:"fsync"`
		SQLitePath   string `toml:"sqlite_path"`
		MirrorSQLite bool   `toml:"mirror_sqlite"`
		PostgresDSN  string `toml:"postgres_dsn"`
	} `toml:"storage"`

	Redis struct {
		Enabled       bool   `toml:"enabled"`
		Addr          string `toml:"addr"`
		Password      string `toml:"password"`
		DB            int    `toml:"db"`
		Prefix        string `toml:"prefix"`
		TTLSeconds    int    `toml:"ttl_seconds"`
		SignalStream  string `toml:"signal_stream"`
		SignalChannel string `toml:"signal_channel"`
	} `toml:"redis"`

	Notify struct {
		Telegram struct {
			Enabled  bool   `toml:"enabled"`
			APIBase  string `toml:"api_base"`
			BotToken string `toml:"bot_token"`
			ChatID   string `toml:"chat_id"`
			Verify   bool   `toml:"verify"`
		} `toml:"telegram"`

		Discord struct {
			Enabled    bool   `toml:"enabled"`
			WebhookURL string `toml:"webhook_url"`
			Username   string `toml:"username"`
		} `toml:"discord"`

		Timeout time.Duration `toml:"timeout"`
	} `toml:"notify"`

	Log struct {
		Level      string `toml:"level"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
		Color      bool   `toml:"color"`
	} `toml:"log"`
}

// Load 读取 TOML 文件，套用环境变量与默认值后校验
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 无配置文件时使用
func Default() *Config {
	var cfg Config
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

// applyEnv 密钥只从环境变量（或 .env）读取时覆盖文件中的值
func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.Telegram.ChatID = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Notify.Discord.WebhookURL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Monitor.Interval <= 0 {
		cfg.Monitor.Interval = 5 * time.Minute
	}
	if cfg.Monitor.ShutdownGrace <= 0 {
		cfg.Monitor.ShutdownGrace = 30 * time.Second
	}
	if cfg.Monitor.Workers <= 0 {
		cfg.Monitor.Workers = 4
	}

	if cfg.Detector.FundingThreshold <= 0 {
		cfg.Detector.FundingThreshold = 0.001
	}
	if cfg.Detector.OISurgeThreshold <= 0 {
		cfg.Detector.OISurgeThreshold = 2.0
	}
	if cfg.Detector.WatchRatio <= 0 {
		cfg.Detector.WatchRatio = 1.7
	}
	if cfg.Detector.MinHistory <= 0 {
		cfg.Detector.MinHistory = 10
	}
	if cfg.Detector.RecentWindow <= 0 {
		cfg.Detector.RecentWindow = 3
	}
	if cfg.Detector.BaselineWindow <= 0 {
		cfg.Detector.BaselineWindow = 10
	}

	if cfg.Exchange.BaseURL == "" {
		cfg.Exchange.BaseURL = "https://fapi.binance.com"
	}
	if cfg.Exchange.DataBaseURL == "" {
		cfg.Exchange.DataBaseURL = cfg.Exchange.BaseURL
	}
	if cfg.Exchange.QuoteAsset == "" {
		cfg.Exchange.QuoteAsset = "USDT"
	}
	if cfg.Exchange.ContractType == "" {
		cfg.Exchange.ContractType = "PERPETUAL"
	}
	if cfg.Exchange.PositioningPeriod == "" {
		cfg.Exchange.PositioningPeriod = "5m"
	}
	if cfg.Exchange.Pacing < 0 {
		cfg.Exchange.Pacing = 0
	} else if cfg.Exchange.Pacing == 0 {
		cfg.Exchange.Pacing = 10 * time.Millisecond
	}
	if cfg.Exchange.Timeout <= 0 {
		cfg.Exchange.Timeout = 10 * time.Second
	}
	if cfg.Exchange.RetryAttempts <= 0 {
		cfg.Exchange.RetryAttempts = 5
	}
	if cfg.Exchange.BackoffFactor <= 0 {
		cfg.Exchange.BackoffFactor = 500 * time.Millisecond
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "csv"
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/squeezemon.db"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "squeezemon"
	}

	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = 10 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 14
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "csv", "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.PostgresDSN) == "" {
			return fmt.Errorf("%w: storage.postgres_dsn (or POSTGRES_DSN) empty but backend is postgres", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrConfiguration, cfg.Storage.Backend)
	}

	if cfg.Detector.RecentWindow > cfg.Detector.BaselineWindow {
		return fmt.Errorf("%w: detector.recent_window (%d) larger than detector.baseline_window (%d)",
			ErrConfiguration, cfg.Detector.RecentWindow, cfg.Detector.BaselineWindow)
	}
	if cfg.Detector.MinHistory < cfg.Detector.RecentWindow {
		return fmt.Errorf("%w: detector.min_history (%d) smaller than detector.recent_window (%d)",
			ErrConfiguration, cfg.Detector.MinHistory, cfg.Detector.RecentWindow)
	}
	if cfg.Detector.WatchRatio > cfg.Detector.OISurgeThreshold {
		return fmt.Errorf("%w: detector.watch_ratio above detector.oi_surge_threshold", ErrConfiguration)
	}

	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return fmt.Errorf("%w: redis.addr empty but enabled", ErrConfiguration)
	}
	return nil
}

// TelegramConfigured 凭证齐全才视为可用；缺失时告警被关闭而不是启动失败
func (c *Config) TelegramConfigured() bool {
	t := c.Notify.Telegram
	return t.Enabled && strings.TrimSpace(t.BotToken) != "" && strings.TrimSpace(t.ChatID) != ""
}
