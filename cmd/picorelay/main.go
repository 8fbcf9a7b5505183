// Package main is the entry point for the relay server.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwulff/picorelay/internal/auth"
	"github.com/jwulff/picorelay/internal/config"
	"github.com/jwulff/picorelay/internal/devices"
	"github.com/jwulff/picorelay/internal/mailbox"
	"github.com/jwulff/picorelay/internal/server"
	"github.com/jwulff/picorelay/internal/storage/sqlite"
	"github.com/jwulff/picorelay/internal/telemetry"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := sqlite.NewFileStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Retention > 0 {
		pruner := telemetry.NewPruner(store, cfg.Retention)
		go pruner.Run(ctx)
		log.Printf("event retention enabled: %s", cfg.Retention)
	}

	srv := server.New(server.Config{
		Addr:         cfg.Addr,
		MaxBodyBytes: cfg.MaxBodyBytes,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
	},
		auth.NewService(store, cfg.SessionTTL),
		devices.NewGateway(store),
		mailbox.New(store),
		telemetry.NewIngestor(store),
		store,
	)

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
