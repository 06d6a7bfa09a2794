package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Mark orphaned running tasks as failed",
	Long:  `Scan for tasks stuck in the running state after a crash and mark them failed.`,
	RunE:  runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	count, err := a.engine.Reconcile(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("reconciled %d task(s)\n", count)
	return nil
}
