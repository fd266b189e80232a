package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[monitor]\ninterval = \"1m\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Monitor.Interval != time.Minute {
		t.Errorf("expected 1m interval, got %v", cfg.Monitor.Interval)
	}
	if cfg.Detector.FundingThreshold != 0.001 || cfg.Detector.OISurgeThreshold != 2.0 {
		t.Errorf("unexpected detector defaults %+v", cfg.Detector)
	}
	if cfg.Detector.MinHistory != 10 || cfg.Detector.RecentWindow != 3 || cfg.Detector.BaselineWindow != 10 {
		t.Errorf("unexpected window defaults %+v", cfg.Detector)
	}
	if cfg.Exchange.Pacing != 10*time.Millisecond || cfg.Exchange.RetryAttempts != 5 {
		t.Errorf("unexpected exchange defaults %+v", cfg.Exchange)
	}
	if cfg.Storage.Backend != "csv" || cfg.Storage.Dir != "data" {
		t.Errorf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Exchange.DataBaseURL != cfg.Exchange.BaseURL {
		t.Errorf("data base url should default to base url")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, "[storage]\nbackend = \"mongo\"\n"))
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadRejectsInvertedWindows(t *testing.T) {
	_, err := Load(writeConfig(t, "[detector]\nrecent_window = 12\nbaseline_window = 10\nmin_history = 12\n"))
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/db")

	cfg, err := Load(writeConfig(t, "[storage]\nbackend = \"postgres\"\n[notify.telegram]\nenabled = true\nbot_token = \"from-file\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Notify.Telegram.BotToken != "123:abc" {
		t.Errorf("env should override file token, got %q", cfg.Notify.Telegram.BotToken)
	}
	if !cfg.TelegramConfigured() {
		t.Error("expected telegram to be configured")
	}
	if cfg.Storage.PostgresDSN != "postgres://localhost/db" {
		t.Errorf("unexpected dsn %q", cfg.Storage.PostgresDSN)
	}
}

func TestTelegramNotConfiguredWithoutChatID(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	cfg, err := Load(writeConfig(t, "[notify.telegram]\nenabled = true\nbot_token = \"x\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TelegramConfigured() {
		t.Error("missing chat id should disable telegram")
	}
}

func TestDiscordWithoutWebhookStillLoads(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL", "")
	cfg, err := Load(writeConfig(t, "[notify.discord]\nenabled = true\n"))
	if err != nil {
		t.Fatalf("missing webhook must only disable alerts, got %v", err)
	}
	if !cfg.Notify.Discord.Enabled || cfg.Notify.Discord.WebhookURL != "" {
		t.Errorf("unexpected discord config %+v", cfg.Notify.Discord)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	if _, err := Load(filepath.Join("..", "..", "..", "configs", "config.toml")); err != nil {
		t.Fatalf("example config failed to load: %v", err)
	}
}
