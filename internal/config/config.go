package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/impression/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Impression ImpressionConfig `yaml:"impression"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	SES        SESConfig        `yaml:"ses"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Worker     WorkerConfig     `yaml:"worker"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Host        string   `yaml:"host"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis connection used for the sweeper lock.
// An empty URL falls back to Postgres advisory locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ImpressionConfig holds the dispatch settings
type ImpressionConfig struct {
	EmailBackend        string `yaml:"email_backend"`
	DefaultService      string `yaml:"default_service"`
	DefaultFromEmail    string `yaml:"default_from_email"`
	DefaultTarget       string `yaml:"default_target"`
	DefaultToken        string `yaml:"default_token"`
	DefaultUnsubscribed bool   `yaml:"default_unsubscribed"`
	SubscriptionAdmins  string `yaml:"subscription_admin_group"`
}

// SMTPConfig holds the SMTP transport settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SESConfig holds AWS SES configuration
type SESConfig struct {
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	Region           string `yaml:"region"`
	ConfigurationSet string `yaml:"configuration_set"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

// Timeout returns the timeout as a time.Duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ArchiveConfig selects the S3 bucket for sent-message archives. Archiving
// is off when Bucket is empty.
type ArchiveConfig struct {
	Bucket   string `yaml:"s3_bucket"`
	Prefix   string `yaml:"s3_prefix"`
	Region   string `yaml:"s3_region"`
	Compress bool   `yaml:"compress"`
}

// WorkerConfig holds re-drive sweeper configuration
type WorkerConfig struct {
	InProcess       bool `yaml:"in_process"` // run the sweeper inside cmd/server
	IntervalSeconds int  `yaml:"interval_seconds"`
	RetryFailed     bool `yaml:"retry_failed"`
}

// Interval returns the sweep interval as a time.Duration
func (c WorkerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether addresses are masked in logs. Defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Settings converts the impression section into core settings.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		EmailBackend:        c.Impression.EmailBackend,
		DefaultService:      c.Impression.DefaultService,
		DefaultFromEmail:    c.Impression.DefaultFromEmail,
		DefaultTarget:       c.Impression.DefaultTarget,
		DefaultToken:        c.Impression.DefaultToken,
		DefaultUnsubscribed: c.Impression.DefaultUnsubscribed,

		SubscriptionAdminGroup: c.Impression.SubscriptionAdmins,
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := domain.DefaultSettings()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Impression.EmailBackend == "" {
		cfg.Impression.EmailBackend = defaults.EmailBackend
	}
	if cfg.Impression.DefaultService == "" {
		cfg.Impression.DefaultService = defaults.DefaultService
	}
	if cfg.Impression.DefaultFromEmail == "" {
		cfg.Impression.DefaultFromEmail = defaults.DefaultFromEmail
	}
	if cfg.Impression.DefaultTarget == "" {
		cfg.Impression.DefaultTarget = defaults.DefaultTarget
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 25
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "impression/sent"
	}
	if cfg.Worker.IntervalSeconds == 0 {
		cfg.Worker.IntervalSeconds = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Environment-only deployments have no config file.
		cfg = &Config{}
		applyDefaults(cfg)
	case err != nil:
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Dispatch settings
	if v := os.Getenv("IMPRESSION_EMAIL_BACKEND"); v != "" {
		cfg.Impression.EmailBackend = v
	}
	if v := os.Getenv("IMPRESSION_DEFAULT_SERVICE"); v != "" {
		cfg.Impression.DefaultService = v
	}
	if v := os.Getenv("IMPRESSION_DEFAULT_FROM_EMAIL"); v != "" {
		cfg.Impression.DefaultFromEmail = v
	}
	if v := os.Getenv("IMPRESSION_DEFAULT_TARGET"); v != "" {
		cfg.Impression.DefaultTarget = v
	}
	if v := os.Getenv("IMPRESSION_DEFAULT_TOKEN"); v != "" {
		cfg.Impression.DefaultToken = v
	}
	if v := os.Getenv("IMPRESSION_DEFAULT_UNSUBSCRIBED"); v != "" {
		cfg.Impression.DefaultUnsubscribed = parseBool(v)
	}
	if v := os.Getenv("IMPRESSION_SUBSCRIPTION_ADMIN_GROUP"); v != "" {
		cfg.Impression.SubscriptionAdmins = v
	}

	// Transports
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}

	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "yes", "on":
		return true
	}
	return false
}
