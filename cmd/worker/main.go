package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/ignite/impression/internal/app"
	"github.com/ignite/impression/internal/config"
	"github.com/ignite/impression/internal/pkg/distlock"
	"github.com/ignite/impression/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	once := flag.Bool("once", false, "run a single re-drive pass and exit")
	retryFailed := flag.Bool("retry-failed", false, "also retry messages whose last attempt failed")
	flag.Parse()

	log.Println("Starting impression re-drive worker...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *retryFailed {
		cfg.Worker.RetryFailed = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	lock := distlock.NewLock(a.Redis, a.DB, worker.RedriveLockKey, worker.DefaultRedriveLockTTL)
	redrive := worker.NewRedrive(a.Messages, lock, worker.RedriveConfig{
		Interval:    cfg.Worker.Interval(),
		RetryFailed: cfg.Worker.RetryFailed,
	})

	if *once {
		stats, err := redrive.RunOnce(ctx)
		if err != nil {
			log.Fatalf("Re-drive failed: %v", err)
		}
		log.Printf("Re-drive done: %d candidates, %d sent, %d failed, %d errors (skipped=%v)",
			stats.Candidates, stats.Sent, stats.Failed, stats.Errors, stats.Skipped)
		return
	}

	go redrive.Start(ctx)
	log.Printf("Re-drive worker running (every %s, retry_failed=%v)", cfg.Worker.Interval(), cfg.Worker.RetryFailed)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	log.Println("Worker stopped")
}
