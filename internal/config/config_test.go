package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  cors_origins: ["https://ops.example.com"]

database:
  url: "postgres://localhost/impression"

impression:
  email_backend: smtp
  default_service: alerts
  default_from_email: "Ops <ops@example.com>"
  default_unsubscribed: true

smtp:
  host: mail.example.com
  port: 587
  username: relay

archive:
  s3_bucket: mail-archive
  compress: true

worker:
  in_process: true
  interval_seconds: 15
  retry_failed: true

log:
  level: debug
  redact_pii: false
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "postgres://localhost/impression", cfg.Database.URL)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "relay", cfg.SMTP.Username)
	assert.Equal(t, "mail-archive", cfg.Archive.Bucket)
	assert.True(t, cfg.Archive.Compress)
	assert.True(t, cfg.Worker.InProcess)
	assert.Equal(t, 15*time.Second, cfg.Worker.Interval())
	assert.True(t, cfg.Worker.RetryFailed)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Redact())

	s := cfg.Settings()
	assert.Equal(t, "smtp", s.EmailBackend)
	assert.Equal(t, "alerts", s.DefaultService)
	assert.Equal(t, "Ops <ops@example.com>", s.DefaultFromEmail)
	assert.True(t, s.DefaultUnsubscribed)
	assert.Equal(t, "http://127.0.0.1:8000/api/send_message/", s.DefaultTarget)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 25, cfg.SMTP.Port)
	assert.Equal(t, 30*time.Second, cfg.SES.Timeout())
	assert.Equal(t, "us-west-2", cfg.SES.Region)
	assert.Equal(t, "impression/sent", cfg.Archive.Prefix)
	assert.Equal(t, time.Minute, cfg.Worker.Interval())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Redact())

	s := cfg.Settings()
	assert.Equal(t, "console", s.EmailBackend)
	assert.Equal(t, "default", s.DefaultService)
	assert.Equal(t, "webmaster@localhost", s.DefaultFromEmail)
	assert.False(t, s.DefaultUnsubscribed)
	assert.Empty(t, s.SubscriptionAdminGroup)
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
database:
  url: "postgres://file/impression"
impression:
  email_backend: console
`)

	t.Setenv("DATABASE_URL", "postgres://env/impression")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("IMPRESSION_EMAIL_BACKEND", "ses")
	t.Setenv("IMPRESSION_DEFAULT_UNSUBSCRIBED", "yes")
	t.Setenv("IMPRESSION_DEFAULT_TOKEN", "relay-token")
	t.Setenv("IMPRESSION_SUBSCRIPTION_ADMIN_GROUP", "postmasters")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("AWS_SES_REGION", "eu-west-1")
	t.Setenv("ARCHIVE_S3_BUCKET", "env-bucket")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/impression", cfg.Database.URL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "ses", cfg.Impression.EmailBackend)
	assert.True(t, cfg.Impression.DefaultUnsubscribed)
	assert.Equal(t, "relay-token", cfg.Settings().DefaultToken)
	assert.Equal(t, "postmasters", cfg.Settings().SubscriptionAdminGroup)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "eu-west-1", cfg.SES.Region)
	assert.Equal(t, "env-bucket", cfg.Archive.Bucket)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/impression")
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/impression", cfg.Database.URL)
	assert.Equal(t, "console", cfg.Impression.EmailBackend)
	assert.Equal(t, 60, cfg.Worker.IntervalSeconds)
}
