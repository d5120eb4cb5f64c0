package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database    DatabaseConfig
	Embedding   EmbeddingConfig
	SMTP        SMTPConfig
	Log         LogConfig
	Recognition RecognitionConfig
	Defaults    DefaultsConfig
}

type DatabaseConfig struct {
	URL          string // postgres://..., mysql://... or sqlite://path/to/file.db
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	URL               string        // defaults to http://localhost:8000
	Timeout           time.Duration // per request, defaults to 30s
	MinDetectionScore float64       // presence check confidence, defaults to 0.6
}

type SMTPConfig struct {
	Server   string
	Port     int
	User     string
	Password string
	From     string // defaults to User
}

// Enabled reports whether enough settings are present to deliver mail: a relay
// and a From address. User may be empty for relays without auth.
func (c *SMTPConfig) Enabled() bool {
	return c.Server != "" && c.Sender() != ""
}

// Sender returns the From address used on outgoing mail.
func (c *SMTPConfig) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

type RecognitionConfig struct {
	IdentifyThreshold  float64
	DuplicateThreshold float64
}

type DefaultsConfig struct {
	Office      OfficeDefaults      `yaml:"office"`
	Recognition RecognitionDefaults `yaml:"recognition"`
}

type OfficeDefaults struct {
	StartTime   string `yaml:"start_time"`
	EndTime     string `yaml:"end_time"`
	OnTimeLimit string `yaml:"on_time_limit"`
}

type RecognitionDefaults struct {
	IdentifyThreshold  float64 `yaml:"identify_threshold"`
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable in time.ParseDuration format.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// LoadDefaults parses the embedded defaults file.
func LoadDefaults() DefaultsConfig {
	var defaults DefaultsConfig
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// Embedded at build time, a parse failure is a programming error.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return defaults
}

func Load() *Config {
	defaults := LoadDefaults()

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedding: EmbeddingConfig{
			URL:               os.Getenv("EMBEDDING_URL"),
			Timeout:           envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			MinDetectionScore: envFloat("EMBEDDING_MIN_DETECTION_SCORE", 0.6),
		},
		SMTP: SMTPConfig{
			Server:   os.Getenv("SMTP_SERVER"),
			Port:     envInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		Recognition: RecognitionConfig{
			IdentifyThreshold:  envFloat("IDENTIFY_THRESHOLD", defaults.Recognition.IdentifyThreshold),
			DuplicateThreshold: envFloat("DUPLICATE_THRESHOLD", defaults.Recognition.DuplicateThreshold),
		},
		Defaults: defaults,
	}
}
