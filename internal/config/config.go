package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration surface of the monitor. Everything has
// a default; a yaml file and UPTIMEBOT_* environment variables override.
type Config struct {
	Addr     string `mapstructure:"addr"`
	DataDir  string `mapstructure:"data_dir"`
	LogDir   string `mapstructure:"log_dir"`
	LogLevel string `mapstructure:"log_level"`

	// Probing
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	MaxRedirects    int           `mapstructure:"max_redirects"`
	AcceptStatusMin int           `mapstructure:"accept_status_min"`
	AcceptStatusMax int           `mapstructure:"accept_status_max"`
	InitialDelay    time.Duration `mapstructure:"initial_delay"`

	// Debounce thresholds: consecutive failures before DOWN, consecutive
	// successes before UP.
	DownThreshold int `mapstructure:"down_threshold"`
	UpThreshold   int `mapstructure:"up_threshold"`

	// Retention
	HistoryLimit int `mapstructure:"history_limit"`

	// Notifications
	WebhookURL        string `mapstructure:"webhook_url"`
	DispatchQueueSize int    `mapstructure:"dispatch_queue_size"`

	// Authorization
	PrimaryAdmin string `mapstructure:"primary_admin"`
}

// StateFile is the target/history/incident snapshot inside DataDir.
func (c Config) StateFile() string { return filepath.Join(c.DataDir, "state.json") }

// AdminFile holds the mutable admin list inside DataDir.
func (c Config) AdminFile() string { return filepath.Join(c.DataDir, "admins.json") }

func defaults() Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".uptimebot")
	return Config{
		Addr:              "127.0.0.1:8080",
		DataDir:           dataDir,
		LogDir:            filepath.Join(dataDir, "logs"),
		LogLevel:          "info",
		PingInterval:      60 * time.Second,
		ProbeTimeout:      30 * time.Second,
		MaxRedirects:      5,
		AcceptStatusMin:   200,
		AcceptStatusMax:   399,
		InitialDelay:      0,
		DownThreshold:     2,
		UpThreshold:       2,
		HistoryLimit:      500,
		WebhookURL:        "",
		DispatchQueueSize: 256,
		PrimaryAdmin:      "",
	}
}

// Load reads configuration from defaults, an optional uptimebot.yaml in
// the data dir or cwd, and UPTIMEBOT_* environment variables.
func Load() (Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigName("uptimebot")
	v.SetConfigType("yaml")
	v.AddConfigPath(cfg.DataDir)
	v.AddConfigPath(".")
	v.SetEnvPrefix("uptimebot")
	v.AutomaticEnv()

	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("ping_interval", cfg.PingInterval)
	v.SetDefault("probe_timeout", cfg.ProbeTimeout)
	v.SetDefault("max_redirects", cfg.MaxRedirects)
	v.SetDefault("accept_status_min", cfg.AcceptStatusMin)
	v.SetDefault("accept_status_max", cfg.AcceptStatusMax)
	v.SetDefault("initial_delay", cfg.InitialDelay)
	v.SetDefault("down_threshold", cfg.DownThreshold)
	v.SetDefault("up_threshold", cfg.UpThreshold)
	v.SetDefault("history_limit", cfg.HistoryLimit)
	v.SetDefault("webhook_url", cfg.WebhookURL)
	v.SetDefault("dispatch_queue_size", cfg.DispatchQueueSize)
	v.SetDefault("primary_admin", cfg.PrimaryAdmin)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping_interval must be positive, got %s", c.PingInterval)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.DownThreshold < 1 || c.UpThreshold < 1 {
		return fmt.Errorf("debounce thresholds must be >= 1, got down=%d up=%d", c.DownThreshold, c.UpThreshold)
	}
	if c.AcceptStatusMin > c.AcceptStatusMax {
		return fmt.Errorf("accept_status_min %d > accept_status_max %d", c.AcceptStatusMin, c.AcceptStatusMax)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be >= 1, got %d", c.HistoryLimit)
	}
	return nil
}
