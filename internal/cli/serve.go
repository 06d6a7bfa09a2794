package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CynnixSinn/Cynetics-CLI/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long:  `Start the cynetics daemon: reconcile orphaned tasks, then serve the HTTP API until interrupted.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	reconciled, err := a.engine.Reconcile(context.Background())
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if reconciled > 0 {
		a.logger.Info("reconciled orphaned tasks", "count", reconciled)
	}

	srv := api.NewServer(a.cfg.ListenAddr, a.engine, a.logger)
	if err := srv.Run(); err != nil {
		return err
	}

	// Let in-flight executions write their terminal state before the store closes.
	a.engine.Wait()
	return nil
}
