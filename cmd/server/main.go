package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/researchops/workbench-authz/internal/api"
	"github.com/researchops/workbench-authz/internal/config"
	"github.com/researchops/workbench-authz/pkg/cache"
	"github.com/researchops/workbench-authz/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting workbench authorization service", "environment", cfg.Environment)

	valkey, err := cache.NewValkeyStore(cfg.Valkey.Addr, cfg.Valkey.DB, cfg.Valkey.Password, time.Duration(cfg.Valkey.TTL)*time.Second)
	if err != nil {
		logger.Fatal("Failed to connect to Valkey permission store", "addr", cfg.Valkey.Addr, "error", err)
	}
	logger.Info("Valkey permission store connected", "addr", cfg.Valkey.Addr)

	apiServer := api.NewServer(cfg, logger, valkey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed", "error", err)
	}

	logger.Info("Shutdown complete")
}
