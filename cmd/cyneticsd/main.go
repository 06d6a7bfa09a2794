package main

import (
	"context"
	"log"
	"os"

	"github.com/CynnixSinn/Cynetics-CLI/internal/api"
	"github.com/CynnixSinn/Cynetics-CLI/internal/config"
	"github.com/CynnixSinn/Cynetics-CLI/internal/engine"
	"github.com/CynnixSinn/Cynetics-CLI/internal/environment"
	"github.com/CynnixSinn/Cynetics-CLI/internal/environment/docker"
	"github.com/CynnixSinn/Cynetics-CLI/internal/executor"
	"github.com/CynnixSinn/Cynetics-CLI/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("cyneticsd: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := environment.NewRegistry()
	reg.Register(environment.NewLocalProvider())
	reg.Register(environment.NewSandboxProvider(cfg.SandboxDir))
	if provider, err := docker.NewProvider(cfg.ContainerImage, logger); err != nil {
		logger.Warn("container provider unavailable", "error", err)
	} else {
		reg.Register(provider)
	}

	x := executor.New(logger, cfg.MaxOutputBytes, executor.DefaultGrace)
	eng := engine.New(db, reg, x, logger, cfg.AllowedPaths, cfg.DefaultTimeoutS)

	reconciled, err := eng.Reconcile(context.Background())
	if err != nil {
		log.Fatalf("failed to reconcile tasks: %v", err)
	}
	if reconciled > 0 {
		logger.Info("reconciled orphaned tasks", "count", reconciled)
	}

	srv := api.NewServer(cfg.ListenAddr, eng, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	// Let in-flight executions persist their terminal state before the store closes.
	eng.Wait()
}
