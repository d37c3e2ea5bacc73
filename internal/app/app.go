// Package app wires configuration into the Postgres repositories, the
// domain services and the selected transport. cmd/server and cmd/worker
// share it so both processes deliver through the same pipeline.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/impression/internal/archive"
	"github.com/ignite/impression/internal/client"
	"github.com/ignite/impression/internal/config"
	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/logger"
	"github.com/ignite/impression/internal/repository/postgres"
	"github.com/ignite/impression/internal/service/address"
	"github.com/ignite/impression/internal/service/distribution"
	"github.com/ignite/impression/internal/service/message"
	"github.com/ignite/impression/internal/service/policy"
	"github.com/ignite/impression/internal/service/ratelimit"
	"github.com/ignite/impression/internal/service/template"
	"github.com/ignite/impression/internal/transport"
)

// App holds the wired components of one process.
type App struct {
	Config   *config.Config
	Settings domain.Settings
	DB       *sql.DB
	Redis    *redis.Client // nil when REDIS_URL is unset or unreachable
	Archiver *archive.S3Archiver

	Tokens    *postgres.TokenRepo
	Servers   *client.Servers
	Addresses *address.Service
	Policy    *policy.Engine
	Messages  *message.Service
}

// New opens the database and Redis connections and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Settings: cfg.Settings(),
		DB:       db,
		Redis:    OpenRedis(ctx, cfg.Redis.URL),
		Tokens:   postgres.NewTokenRepo(db),
	}
	a.Servers = client.NewServers(postgres.NewRemoteServerRepo(db), a.Settings)

	tr, err := transport.New(ctx, a.Settings.EmailBackend, transport.Options{
		SMTP: transport.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		},
		SES: transport.SESConfig{
			Region:           cfg.SES.Region,
			AccessKey:        cfg.SES.AccessKey,
			SecretKey:        cfg.SES.SecretKey,
			ConfigurationSet: cfg.SES.ConfigurationSet,
			Timeout:          cfg.SES.Timeout(),
		},
		Remote: client.NewRemoteBackend(a.Servers, a.Settings, nil),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("transport: %w", err)
	}
	log.Printf("[App] Email backend: %s", a.Settings.EmailBackend)

	a.Archiver, err = archive.NewS3Archiver(ctx, archive.Config{
		Bucket:   cfg.Archive.Bucket,
		Prefix:   cfg.Archive.Prefix,
		Region:   cfg.Archive.Region,
		Compress: cfg.Archive.Compress,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("archive: %w", err)
	}

	messages := postgres.NewMessageRepo(db)
	a.Addresses = address.NewService(postgres.NewAddressRepo(db), a.Settings)
	a.Policy = policy.NewEngine(postgres.NewServiceRepo(db), a.Addresses,
		distribution.NewResolver(postgres.NewDistributionRepo(db)), a.Settings)

	deps := message.Deps{
		Repo:      messages,
		Addresses: a.Addresses,
		Policy:    a.Policy,
		Limiter:   ratelimit.NewLimiter(messages),
		Templates: template.NewEngine(postgres.NewTemplateRepo(db)),
		Transport: tr,
	}
	// A nil *S3Archiver stored in the interface would not compare equal to nil.
	if a.Archiver != nil {
		deps.Archiver = a.Archiver
		log.Printf("[App] Archiving sent mail to s3://%s/%s", cfg.Archive.Bucket, cfg.Archive.Prefix)
	}
	a.Messages = message.NewService(deps)
	return a, nil
}

// OpenDB opens and pings the Postgres pool described by cfg.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	dsn := cfg.URL
	if !strings.Contains(dsn, "connect_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "connect_timeout=5"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Println("[App] Connected to PostgreSQL")
	return db, nil
}

// OpenRedis connects to url. Redis only backs the sweeper lock, so any
// failure is logged and nil is returned; callers fall back to advisory locks.
func OpenRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}
	var rc *redis.Client
	if opts, err := redis.ParseURL(url); err != nil {
		rc = redis.NewClient(&redis.Options{Addr: url})
	} else {
		rc = redis.NewClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		log.Printf("[App] WARNING: Redis unavailable (%v), using advisory locks", err)
		rc.Close()
		return nil
	}
	log.Println("[App] Connected to Redis")
	return rc
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
