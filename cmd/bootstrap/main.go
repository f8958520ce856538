// Bootstrap installs the deployment-wide ITAdmin group and its root user.
// Run once per deployment, or again after changing the root user; every
// step tolerates already-applied state.
package main

import (
	"context"
	"log"
	"time"

	"github.com/researchops/workbench-authz/internal/config"
	"github.com/researchops/workbench-authz/internal/provision"
	"github.com/researchops/workbench-authz/internal/repo/permit"
	"github.com/researchops/workbench-authz/pkg/cache"
	"github.com/researchops/workbench-authz/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Auth.RootUserEmail == "" {
		log.Fatal("auth.root_user_email must be set to bootstrap the root admin")
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Root admin bootstrap starting", "environment", cfg.Environment)

	valkey, err := cache.NewValkeyStore(cfg.Valkey.Addr, cfg.Valkey.DB, cfg.Valkey.Password, time.Duration(cfg.Valkey.TTL)*time.Second)
	if err != nil {
		logger.Fatal("Failed to connect to Valkey permission store", "addr", cfg.Valkey.Addr, "error", err)
	}

	store := permit.NewValkeyStore(valkey)
	svc := provision.NewService(store, store, cfg.Authz.PurgePageSize, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := svc.SetupRootAdmin(ctx, cfg.Auth.RootUserEmail); err != nil {
		logger.Fatal("Root admin bootstrap failed", "error", err)
	}

	logger.Info("Root admin bootstrap complete", "root_user", cfg.Auth.RootUserEmail)
}
