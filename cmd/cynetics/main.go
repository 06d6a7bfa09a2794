package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/CynnixSinn/Cynetics-CLI/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !errors.Is(err, cli.ErrTaskNotCompleted) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
