package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "schedctl",
		Short:         "Offline schedule optimization runs over CSV fixtures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newAnnealCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "schedctl: %v\n", err)
		os.Exit(1)
	}
}
