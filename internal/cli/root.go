// Package cli implements the cynetics command line interface. Every command
// opens the task store directly, so the CLI and the daemon share one database
// but never need each other to run.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/CynnixSinn/Cynetics-CLI/internal/config"
	"github.com/CynnixSinn/Cynetics-CLI/internal/engine"
	"github.com/CynnixSinn/Cynetics-CLI/internal/environment"
	"github.com/CynnixSinn/Cynetics-CLI/internal/environment/docker"
	"github.com/CynnixSinn/Cynetics-CLI/internal/executor"
	"github.com/CynnixSinn/Cynetics-CLI/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "cynetics",
	Short:         "Secure task delegation engine",
	Long:          `Cynetics registers named shell commands as tasks and runs them under local, sandbox, or container isolation with timeouts and path policy enforcement.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(environmentsCmd)
	rootCmd.AddCommand(reconcileCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app bundles the wired components a command needs.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  store.Store
	engine *engine.Engine
}

// newApp wires the store, environment registry, executor, and engine from the
// environment configuration. The container provider is registered only when
// the runtime is reachable; tasks targeting it still fail cleanly either way.
func newApp() (*app, error) {
	cfg := config.Load()
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := environment.NewRegistry()
	reg.Register(environment.NewLocalProvider())
	reg.Register(environment.NewSandboxProvider(cfg.SandboxDir))
	if provider, err := docker.NewProvider(cfg.ContainerImage, logger); err != nil {
		logger.Warn("container provider unavailable", "error", err)
	} else {
		reg.Register(provider)
	}

	x := executor.New(logger, cfg.MaxOutputBytes, executor.DefaultGrace)
	eng := engine.New(s, reg, x, logger, cfg.AllowedPaths, cfg.DefaultTimeoutS)

	return &app{cfg: cfg, logger: logger, store: s, engine: eng}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close store: %v\n", err)
	}
}
