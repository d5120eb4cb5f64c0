package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	defaults := LoadDefaults()

	if defaults.Office.OnTimeLimit != "09:30:00" {
		t.Errorf("expected on_time_limit '09:30:00', got '%s'", defaults.Office.OnTimeLimit)
	}
	if defaults.Office.StartTime != "09:00:00" {
		t.Errorf("expected start_time '09:00:00', got '%s'", defaults.Office.StartTime)
	}
	if defaults.Office.EndTime != "18:00:00" {
		t.Errorf("expected end_time '18:00:00', got '%s'", defaults.Office.EndTime)
	}
	if defaults.Recognition.IdentifyThreshold != 0.6 {
		t.Errorf("expected identify threshold 0.6, got %f", defaults.Recognition.IdentifyThreshold)
	}
	if defaults.Recognition.DuplicateThreshold != 0.7 {
		t.Errorf("expected duplicate threshold 0.7, got %f", defaults.Recognition.DuplicateThreshold)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "")
	t.Setenv("EMBEDDING_TIMEOUT", "")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("IDENTIFY_THRESHOLD", "")

	cfg := Load()

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected MaxOpenConns 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected MaxIdleConns 5, got %d", cfg.Database.MaxIdleConns)
	}
	if cfg.Embedding.Timeout != 30*time.Second {
		t.Errorf("expected embedding timeout 30s, got %v", cfg.Embedding.Timeout)
	}
	if cfg.Embedding.MinDetectionScore != 0.6 {
		t.Errorf("expected min detection score 0.6, got %f", cfg.Embedding.MinDetectionScore)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("expected SMTP port 587, got %d", cfg.SMTP.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Log.Level)
	}
	if cfg.Recognition.IdentifyThreshold != 0.6 {
		t.Errorf("expected identify threshold 0.6, got %f", cfg.Recognition.IdentifyThreshold)
	}
	if cfg.Recognition.DuplicateThreshold != 0.7 {
		t.Errorf("expected duplicate threshold 0.7, got %f", cfg.Recognition.DuplicateThreshold)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://attendance.db")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "7")
	t.Setenv("EMBEDDING_URL", "http://embed:8000")
	t.Setenv("EMBEDDING_TIMEOUT", "5s")
	t.Setenv("SMTP_SERVER", "smtp.example.com")
	t.Setenv("SMTP_USER", "hr@example.com")
	t.Setenv("IDENTIFY_THRESHOLD", "0.65")

	cfg := Load()

	if cfg.Database.URL != "sqlite://attendance.db" {
		t.Errorf("expected database URL from env, got '%s'", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 7 {
		t.Errorf("expected MaxOpenConns 7, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Embedding.URL != "http://embed:8000" {
		t.Errorf("expected embedding URL from env, got '%s'", cfg.Embedding.URL)
	}
	if cfg.Embedding.Timeout != 5*time.Second {
		t.Errorf("expected embedding timeout 5s, got %v", cfg.Embedding.Timeout)
	}
	if !cfg.SMTP.Enabled() {
		t.Error("expected SMTP to be enabled")
	}
	if cfg.SMTP.Sender() != "hr@example.com" {
		t.Errorf("expected sender to fall back to user, got '%s'", cfg.SMTP.Sender())
	}
	if cfg.Recognition.IdentifyThreshold != 0.65 {
		t.Errorf("expected identify threshold 0.65, got %f", cfg.Recognition.IdentifyThreshold)
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"unset", "", 10},
		{"valid", "42", 42},
		{"zero", "0", 10},
		{"negative", "-3", 10},
		{"garbage", "abc", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tt.value)
			if got := envInt("TEST_ENV_INT", 10); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestEnvFloat_OutOfRange(t *testing.T) {
	t.Setenv("TEST_ENV_FLOAT", "1.5")
	if got := envFloat("TEST_ENV_FLOAT", 0.6); got != 0.6 {
		t.Errorf("expected fallback 0.6 for out-of-range value, got %f", got)
	}
}

func TestSMTPConfig_Sender(t *testing.T) {
	cfg := SMTPConfig{User: "user@example.com", From: "noreply@example.com"}
	if cfg.Sender() != "noreply@example.com" {
		t.Errorf("expected explicit From, got '%s'", cfg.Sender())
	}

	empty := SMTPConfig{}
	if empty.Enabled() {
		t.Error("expected empty SMTP config to be disabled")
	}
}

func TestSMTPConfig_Enabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
		want bool
	}{
		{"relay with auth", SMTPConfig{Server: "smtp.example.com", User: "hr@example.com"}, true},
		{"relay without auth", SMTPConfig{Server: "relay.local", From: "hr@example.com"}, true},
		{"no sender address", SMTPConfig{Server: "relay.local"}, false},
		{"no server", SMTPConfig{User: "hr@example.com"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
