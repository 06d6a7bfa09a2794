package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var environmentsCmd = &cobra.Command{
	Use:   "environments",
	Short: "List available execution environments",
	RunE:  runEnvironments,
}

func runEnvironments(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tISOLATED\tDESCRIPTION")
	for _, info := range a.engine.Environments() {
		fmt.Fprintf(w, "%s\t%t\t%s\n",
			info.Kind,
			info.Capabilities.Isolated,
			info.Capabilities.Description,
		)
	}
	return w.Flush()
}
