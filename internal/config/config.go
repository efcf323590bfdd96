package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Henry6262/opus-x-sub001/internal/logging"
	"github.com/Henry6262/opus-x-sub001/internal/ranking"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Flash     FlashConfig     `mapstructure:"flash"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Server    ServerConfig    `mapstructure:"server"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StreamConfig covers the upstream event WebSocket.
type StreamConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	BackoffMin       time.Duration `mapstructure:"backoff_min"`
	BackoffMax       time.Duration `mapstructure:"backoff_max"`
}

// DashboardConfig captures backend REST API connectivity.
type DashboardConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RetryCount     int           `mapstructure:"retry_count"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
}

// FeedConfig sizes the per-session windows.
type FeedConfig struct {
	DecisionCapacity int `mapstructure:"decision_capacity"`
	ActivityCapacity int `mapstructure:"activity_capacity"`
	HistoryCapacity  int `mapstructure:"history_capacity"`
}

// FlashConfig tunes flash signalling.
type FlashConfig struct {
	PriceThreshold float64       `mapstructure:"price_threshold"`
	ScoreThreshold float64       `mapstructure:"score_threshold"`
	Hold           time.Duration `mapstructure:"hold"`
}

// RankingConfig carries the scoring weights and the refresh cadence.
type RankingConfig struct {
	Weights         ranking.Weights `mapstructure:"weights"`
	RefreshInterval time.Duration   `mapstructure:"refresh_interval"`
	StartupDelay    time.Duration   `mapstructure:"startup_delay"`
}

// AlertingConfig defines readiness alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ServerConfig governs the outbound API server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OPUSFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "opusfeed")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("stream.handshake_timeout", "10s")
	v.SetDefault("stream.read_limit", int64(1<<20))
	v.SetDefault("stream.backoff_min", "1s")
	v.SetDefault("stream.backoff_max", "30s")

	v.SetDefault("dashboard.request_timeout", "10s")
	v.SetDefault("dashboard.user_agent", "opusfeed/1.0")
	v.SetDefault("dashboard.retry_count", 0)
	v.SetDefault("dashboard.requests_per_sec", 5.0)

	v.SetDefault("feed.decision_capacity", 20)
	v.SetDefault("feed.activity_capacity", 50)
	v.SetDefault("feed.history_capacity", 240)

	v.SetDefault("flash.price_threshold", 0.001)
	v.SetDefault("flash.score_threshold", 0.02)
	v.SetDefault("flash.hold", "600ms")

	v.SetDefault("ranking.refresh_interval", "5s")
	v.SetDefault("ranking.startup_delay", "0s")
	v.SetDefault("ranking.weights.freshness_max", 30.0)
	v.SetDefault("ranking.weights.wallet_max", 50.0)
	v.SetDefault("ranking.weights.ai_confidence_max", 25.0)
	v.SetDefault("ranking.weights.price_action_max", 15.0)
	v.SetDefault("ranking.weights.liquidity_max", 10.0)
	v.SetDefault("ranking.weights.wallet_points", 12.0)
	v.SetDefault("ranking.weights.liquidity_full_sol", 100.0)
	v.SetDefault("ranking.weights.max_age", "30m")
	v.SetDefault("ranking.weights.ready_threshold", 60.0)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "15m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Feed.DecisionCapacity <= 0 {
		return fmt.Errorf("feed.decision_capacity must be greater than zero")
	}
	if c.Feed.ActivityCapacity <= 0 {
		return fmt.Errorf("feed.activity_capacity must be greater than zero")
	}
	if c.Ranking.RefreshInterval <= 0 {
		return fmt.Errorf("ranking.refresh_interval must be greater than zero")
	}
	if c.Flash.PriceThreshold < 0 || c.Flash.ScoreThreshold < 0 {
		return fmt.Errorf("flash thresholds cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
