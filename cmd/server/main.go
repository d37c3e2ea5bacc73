package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ignite/impression/internal/api"
	"github.com/ignite/impression/internal/app"
	"github.com/ignite/impression/internal/auth"
	"github.com/ignite/impression/internal/config"
	"github.com/ignite/impression/internal/pkg/distlock"
	"github.com/ignite/impression/internal/worker"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Starting impression API server...")

	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	healthDeps := api.HealthDeps{DB: a.DB, Redis: a.Redis, Backlog: a.Messages}
	if a.Archiver != nil {
		healthDeps.Archive = a.Archiver
	}
	health := api.NewHealthChecker(healthDeps)

	handlers := api.NewHandlers(a.Messages, a.Addresses, a.Policy)
	server := api.NewServer(cfg.Server, handlers, auth.NewTokenAuthenticator(a.Tokens), health)

	if cfg.Worker.InProcess {
		lock := distlock.NewLock(a.Redis, a.DB, worker.RedriveLockKey, worker.DefaultRedriveLockTTL)
		redrive := worker.NewRedrive(a.Messages, lock, worker.RedriveConfig{
			Interval:    cfg.Worker.Interval(),
			RetryFailed: cfg.Worker.RetryFailed,
		})
		go redrive.Start(ctx)
		log.Printf("[Server] In-process re-drive sweeper started (every %s)", cfg.Worker.Interval())
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

func configPath() string {
	if p := os.Getenv("IMPRESSION_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}
