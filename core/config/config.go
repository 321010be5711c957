// Package config loads bot configuration from an optional YAML file
// overlaid with environment variables. Env always wins, so a container
// deployment can run without any file at all.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Run modes for receiving Telegram updates.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted in rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

// TelegramConfig holds the bot identity and update transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig is only consulted when run_mode is webhook.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// DownloadConfig controls the yt-dlp/ffprobe invocation and delivery limits.
type DownloadConfig struct {
	YtdlpPath   string `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	FfprobePath string `yaml:"ffprobe_path" envconfig:"FFPROBE_PATH"`
	// WorkDir is where per-task temp directories are created; empty -> os temp.
	WorkDir      string `yaml:"work_dir" envconfig:"DOWNLOAD_WORK_DIR"`
	AudioFormat  string `yaml:"audio_format" envconfig:"DOWNLOAD_AUDIO_FORMAT"`
	AudioQuality string `yaml:"audio_quality" envconfig:"DOWNLOAD_AUDIO_QUALITY"`
	// TimeoutSeconds bounds a single yt-dlp run, playlist or not.
	TimeoutSeconds int `yaml:"timeout_seconds" envconfig:"DOWNLOAD_TIMEOUT_SECONDS"`
	// MaxFileMB is the per-file delivery cap; Telegram bots refuse larger uploads.
	MaxFileMB     int `yaml:"max_file_mb" envconfig:"DOWNLOAD_MAX_FILE_MB"`
	PlaylistLimit int `yaml:"playlist_limit" envconfig:"DOWNLOAD_PLAYLIST_LIMIT"`
	// Concurrency caps simultaneous yt-dlp subprocesses across all chats.
	Concurrency int `yaml:"concurrency" envconfig:"DOWNLOAD_CONCURRENCY"`
}

// LoggingConfig shapes the logging pipeline.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	KeysOrder string `yaml:"keys_order"`
	// DebugSample thins high-volume debug events, e.g. "1/50".
	DebugSample string `yaml:"debug_sample"`
	// Stacks controls panic stack traces in log lines; "off" trims them.
	Stacks     string `yaml:"stacks"`
	Dir        string `yaml:"dir"`
	BotFile    string `yaml:"bot_file"`
	ErrorsFile string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// RateLimitConfig throttles per-user update handling. ExcludeUpdates
// names update kinds that bypass the limiter (callback, message,
// inline_query).
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration shared by every part of the bot.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Download  DownloadConfig  `yaml:"download"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads the YAML file at path, overlays environment variables and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Normalize fills defaults and rejects values the bot cannot run with.
// It is exported so embedding configs can reuse the same validation.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := normalizeTelegram(cfg); err != nil {
		return err
	}
	if err := normalizeDownload(&cfg.Download); err != nil {
		return err
	}
	return normalizeRateLimit(&cfg.RateLimit)
}

func normalizeTelegram(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling":
		mode = RunModeLongpoll
	}

	switch mode {
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required in webhook mode")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			cfg.Webhook.Listen = "0.0.0.0"
		}
		if cfg.Webhook.Port < 0 {
			return fmt.Errorf("webhook.port must be > 0")
		}
		if cfg.Webhook.Port == 0 {
			cfg.Webhook.Port = 8443
		}
	default:
		return fmt.Errorf("unknown telegram.run_mode %q, want webhook or longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = mode
	return nil
}

func normalizeDownload(d *DownloadConfig) error {
	if strings.TrimSpace(d.YtdlpPath) == "" {
		d.YtdlpPath = "yt-dlp"
	}
	if strings.TrimSpace(d.FfprobePath) == "" {
		d.FfprobePath = "ffprobe"
	}
	if strings.TrimSpace(d.AudioFormat) == "" {
		d.AudioFormat = "mp3"
	}
	if strings.TrimSpace(d.AudioQuality) == "" {
		d.AudioQuality = "192K"
	}

	type bound struct {
		name string
		val  *int
		def  int
	}
	for _, b := range []bound{
		{"download.timeout_seconds", &d.TimeoutSeconds, 600},
		{"download.max_file_mb", &d.MaxFileMB, 50},
		{"download.playlist_limit", &d.PlaylistLimit, 50},
		{"download.concurrency", &d.Concurrency, 2},
	} {
		if *b.val < 0 {
			return fmt.Errorf("%s must be > 0", b.name)
		}
		if *b.val == 0 {
			*b.val = b.def
		}
	}
	return nil
}

func normalizeRateLimit(rl *RateLimitConfig) error {
	for i, v := range rl.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		if kind == "" {
			continue
		}
		switch kind {
		case UpdateCallback, UpdateMessage, UpdateInlineQuery:
			rl.ExcludeUpdates[i] = kind
		default:
			return fmt.Errorf("unknown rate_limit.exclude_updates value %q", v)
		}
	}
	return nil
}
