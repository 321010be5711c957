package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
	}
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
	d := cfg.Download
	if d.YtdlpPath != "yt-dlp" || d.FfprobePath != "ffprobe" {
		t.Fatalf("binary defaults: %q, %q", d.YtdlpPath, d.FfprobePath)
	}
	if d.AudioFormat != "mp3" || d.AudioQuality != "192K" {
		t.Fatalf("audio defaults: %q, %q", d.AudioFormat, d.AudioQuality)
	}
	if d.TimeoutSeconds != 600 || d.MaxFileMB != 50 || d.PlaylistLimit != 50 || d.Concurrency != 2 {
		t.Fatalf("limit defaults: %+v", d)
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	err := Normalize(&Config{})
	if err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestNormalizeAcceptsPollingAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "Polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
}

func TestNormalizeRejectsUnknownRunMode(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "carrier-pigeon"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown run_mode")
	}
}

func TestNormalizeWebhookRequiresURL(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook mode without url")
	}

	cfg = validConfig()
	cfg.Telegram.RunMode = "WEBHOOK"
	cfg.Webhook.URL = "https://bot.example.com/hook"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Webhook.Listen != "0.0.0.0" || cfg.Webhook.Port != 8443 {
		t.Fatalf("webhook defaults: %q, %d", cfg.Webhook.Listen, cfg.Webhook.Port)
	}
}

func TestNormalizeRejectsNegativeDownloadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*DownloadConfig)
	}{
		{"timeout", func(d *DownloadConfig) { d.TimeoutSeconds = -1 }},
		{"max file", func(d *DownloadConfig) { d.MaxFileMB = -1 }},
		{"playlist limit", func(d *DownloadConfig) { d.PlaylistLimit = -5 }},
		{"concurrency", func(d *DownloadConfig) { d.Concurrency = -2 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg.Download)
			if err := Normalize(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNormalizeRateLimitExcludes(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "message"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback {
		t.Fatalf("exclude[0] = %q, want %q", cfg.RateLimit.ExcludeUpdates[0], UpdateCallback)
	}

	cfg = validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"everything"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown exclude value")
	}
}
