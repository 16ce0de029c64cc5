package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultCaption is attached to every delivered video and to the first album item.
const DefaultCaption = "ដោនឡូតវីដេអូដោយ @Apple_Downloader_bot"

// Config holds all application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Fetch     FetchConfig     `yaml:"fetch"`
	AllowList AllowListConfig `yaml:"allow_list"`
	Storage   StorageConfig   `yaml:"storage"`
	Worker    WorkerConfig    `yaml:"worker"`
	Server    ServerConfig    `yaml:"server"`
	Events    EventsConfig    `yaml:"events"`
	Log       LogConfig       `yaml:"log"`
}

// TelegramConfig holds chat transport configuration.
type TelegramConfig struct {
	Token          string        `yaml:"token" envconfig:"BOT_TOKEN"`
	Debug          bool          `yaml:"debug" envconfig:"TELEGRAM_DEBUG"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"TELEGRAM_REQUEST_TIMEOUT"`
	PollTimeout    int           `yaml:"poll_timeout" envconfig:"TELEGRAM_POLL_TIMEOUT"`
}

// DeliveryConfig holds delivery limits and presentation.
type DeliveryConfig struct {
	MaxUploadMB int64  `yaml:"max_upload_mb" envconfig:"FILE_SIZE_LIMIT_MB"`
	AlbumSize   int    `yaml:"album_size" envconfig:"ALBUM_SIZE"`
	Caption     string `yaml:"caption" envconfig:"BOT_CAPTION"`
}

// LimitBytes returns the inline upload ceiling in bytes.
func (c DeliveryConfig) LimitBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}

// FetchConfig holds extraction engine configuration.
type FetchConfig struct {
	// Formats is tried in order; the first satisfiable selector wins.
	Formats        []string      `yaml:"formats" envconfig:"FETCH_FORMATS"`
	YtDlpPath      string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	FFmpegPath     string        `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
	SocketTimeout  time.Duration `yaml:"socket_timeout" envconfig:"FETCH_SOCKET_TIMEOUT"`
	Retries        int           `yaml:"retries" envconfig:"FETCH_RETRIES"`
	JobTimeout     time.Duration `yaml:"job_timeout" envconfig:"FETCH_JOB_TIMEOUT"`
	UserAgent      string        `yaml:"user_agent" envconfig:"FETCH_USER_AGENT"`
	RetryDelay     time.Duration `yaml:"retry_delay" envconfig:"FETCH_RETRY_DELAY"`
	MaxRetryDelay  time.Duration `yaml:"max_retry_delay" envconfig:"FETCH_MAX_RETRY_DELAY"`
	ProgressWindow time.Duration `yaml:"progress_window" envconfig:"PROGRESS_WINDOW"`
}

// FormatSelector joins the preference list into a single fallback selector.
func (c FetchConfig) FormatSelector() string {
	parts := make([]string, 0, len(c.Formats))
	for _, f := range c.Formats {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, "/")
}

// AllowListConfig maps platform names to the hosts that belong to them.
type AllowListConfig struct {
	Platforms map[string][]string `yaml:"platforms" ignored:"true"`
}

// DefaultPlatforms is used when no allow-list is configured.
func DefaultPlatforms() map[string][]string {
	return map[string][]string{
		"youtube":   {"youtube.com", "youtu.be"},
		"tiktok":    {"tiktok.com"},
		"facebook":  {"facebook.com", "fb.watch"},
		"instagram": {"instagram.com"},
	}
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	TempPath     string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH"`
	OverflowPath string `yaml:"overflow_path" envconfig:"DOWNLOAD_DIR"`
	MinFreeBytes int64  `yaml:"min_free_bytes" envconfig:"STORAGE_MIN_FREE_BYTES"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	MaxConcurrent   int           `yaml:"max_concurrent" envconfig:"WORKER_MAX_CONCURRENT"`
	MaxPending      int           `yaml:"max_pending" envconfig:"WORKER_MAX_PENDING"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"WORKER_SHUTDOWN_TIMEOUT"`
}

// ServerConfig holds the operational HTTP server configuration.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"SERVER_ENABLED"`
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
}

// EventsConfig holds activity log configuration.
type EventsConfig struct {
	RingBufferSize  int    `yaml:"ring_buffer_size" envconfig:"EVENTS_RING_BUFFER_SIZE"`
	PersistToSQLite bool   `yaml:"persist_to_sqlite" envconfig:"EVENTS_PERSIST"`
	SQLitePath      string `yaml:"sqlite_path" envconfig:"EVENTS_SQLITE_PATH"`
	RetentionDays   int    `yaml:"retention_days" envconfig:"EVENTS_RETENTION_DAYS"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
}

// SlogLevel maps the configured level to a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the built-in configuration. File and environment values
// are layered over it by Load.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			RequestTimeout: 100 * time.Second,
			PollTimeout:    60,
		},
		Delivery: DeliveryConfig{
			MaxUploadMB: 50,
			AlbumSize:   10,
		},
		Fetch: FetchConfig{
			Formats: []string{
				"bv[ext=mp4][height<=720]+ba[ext=m4a]",
				"b[ext=mp4][height<=720]",
				"bv+ba",
				"b",
			},
			FFmpegPath:     "/usr/bin/ffmpeg",
			SocketTimeout:  30 * time.Second,
			Retries:        3,
			JobTimeout:     15 * time.Minute,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			RetryDelay:     2 * time.Second,
			MaxRetryDelay:  30 * time.Second,
			ProgressWindow: 2500 * time.Millisecond,
		},
		Storage: StorageConfig{
			OverflowPath: "downloads",
			MinFreeBytes: 100 * 1024 * 1024,
		},
		Worker: WorkerConfig{
			MaxConcurrent:   4,
			MaxPending:      32,
			ShutdownTimeout: 25 * time.Second,
		},
		Server: ServerConfig{
			Enabled:      true,
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Events: EventsConfig{
			RingBufferSize: 1000,
			SQLitePath:     "events.db",
			RetentionDays:  30,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables override file values, which override Default.
// The struct carries no envconfig default tags, so unset variables leave
// file values in place.
func Load(configPath string) (*Config, error) {
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

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Delivery.Caption == "" {
		c.Delivery.Caption = DefaultCaption
	}
	if len(c.AllowList.Platforms) == 0 {
		c.AllowList.Platforms = DefaultPlatforms()
	}
	if c.Storage.TempPath == "" {
		c.Storage.TempPath = os.TempDir()
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.Delivery.MaxUploadMB <= 0 {
		return fmt.Errorf("FILE_SIZE_LIMIT_MB must be positive")
	}
	if c.Delivery.AlbumSize <= 0 || c.Delivery.AlbumSize > 10 {
		return fmt.Errorf("ALBUM_SIZE must be between 1 and 10")
	}
	if c.Fetch.FormatSelector() == "" {
		return fmt.Errorf("FETCH_FORMATS is required")
	}
	if c.Storage.OverflowPath == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if len(c.AllowList.Platforms) == 0 {
		return fmt.Errorf("allow_list.platforms must not be empty")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
