package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Tools    ToolsConfig    `yaml:"tools"`
	Limits   LimitsConfig   `yaml:"limits"`
	Storage  StorageConfig  `yaml:"storage"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Admin    AdminConfig    `yaml:"admin"`
}

// TelegramConfig holds bot API configuration.
type TelegramConfig struct {
	Token          string        `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	Username       string        `yaml:"username" envconfig:"TELEGRAM_BOT_USERNAME"`
	Debug          bool          `yaml:"debug" envconfig:"TELEGRAM_DEBUG"`
	PollTimeout    int           `yaml:"poll_timeout" envconfig:"TELEGRAM_POLL_TIMEOUT"`
	StatusInterval time.Duration `yaml:"status_interval" envconfig:"TELEGRAM_STATUS_INTERVAL"`
}

// ToolsConfig holds paths to the external binaries.
type ToolsConfig struct {
	YtDlpPath   string `yaml:"yt_dlp_path" envconfig:"YT_DLP_PATH"`
	FFmpegPath  string `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
	FFprobePath string `yaml:"ffprobe_path" envconfig:"FFPROBE_PATH"`
}

// LimitsConfig holds download limits.
type LimitsConfig struct {
	MaxFileSize          int64   `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE"`
	MaxDurationMinutes   float64 `yaml:"max_duration_minutes" envconfig:"MAX_DURATION_MINUTES"`
	MaxParallelDownloads int     `yaml:"max_parallel_downloads" envconfig:"MAX_PARALLEL_DOWNLOADS"`
	MaxConcurrentRuns    int     `yaml:"max_concurrent_runs" envconfig:"MAX_CONCURRENT_RUNS"` // across all chats
}

// MaxDurationSeconds returns the duration limit in seconds.
func (l LimitsConfig) MaxDurationSeconds() float64 {
	return l.MaxDurationMinutes * 60
}

// StorageConfig holds working directory configuration.
type StorageConfig struct {
	WorkDir   string `yaml:"work_dir" envconfig:"STORAGE_WORK_DIR"`
	KeepAudio bool   `yaml:"keep_audio" envconfig:"STORAGE_KEEP_AUDIO"`
}

// FetchConfig holds HTTP fetch configuration.
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" envconfig:"FETCH_TIMEOUT"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"FETCH_RETRY_DELAY"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"FETCH_MAX_RETRY_DELAY"`
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"FETCH_MAX_ATTEMPTS"`
	UserAgent     string        `yaml:"user_agent" envconfig:"FETCH_USER_AGENT"`
}

// AdminConfig holds the admin HTTP server configuration.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ADMIN_ENABLED"`
	Host    string `yaml:"host" envconfig:"ADMIN_HOST"`
	Port    int    `yaml:"port" envconfig:"ADMIN_PORT"`
	APIKey  string `yaml:"api_key" envconfig:"ADMIN_API_KEY"`
}

// Default returns the configuration used for values no file or variable sets.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout:    60,
			StatusInterval: time.Second,
		},
		Tools: ToolsConfig{
			YtDlpPath:   "yt-dlp",
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
		Limits: LimitsConfig{
			MaxFileSize:          50 * 1024 * 1024,
			MaxDurationMinutes:   10,
			MaxParallelDownloads: 3,
			MaxConcurrentRuns:    4,
		},
		Storage: StorageConfig{
			WorkDir: "workzone",
		},
		Fetch: FetchConfig{
			Timeout:       30 * time.Second,
			RetryDelay:    2 * time.Second,
			MaxRetryDelay: 20 * time.Second,
			MaxAttempts:   3,
			UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		},
		Admin: AdminConfig{
			Host: "127.0.0.1",
			Port: 9848,
		},
	}
}

// Address returns the admin server address in host:port format.
func (c *AdminConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from a .env file, a YAML file and environment variables.
// Values not set in the file keep their defaults, and environment variables
// override both. A missing .env file is not an error.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Limits.MaxParallelDownloads < 1 {
		return fmt.Errorf("MAX_PARALLEL_DOWNLOADS must be at least 1")
	}
	if c.Limits.MaxConcurrentRuns < 1 {
		return fmt.Errorf("MAX_CONCURRENT_RUNS must be at least 1")
	}
	if c.Limits.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	// A zero limit rejects every video with a known positive duration;
	// there is no "unlimited" value.
	if c.Limits.MaxDurationMinutes < 0 {
		return fmt.Errorf("MAX_DURATION_MINUTES must not be negative")
	}
	if c.Storage.WorkDir == "" {
		return fmt.Errorf("STORAGE_WORK_DIR is required")
	}
	if c.Telegram.StatusInterval <= 0 {
		return fmt.Errorf("TELEGRAM_STATUS_INTERVAL must be positive")
	}
	return nil
}
