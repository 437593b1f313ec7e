package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// BaseUrl is the address of the pricescoutd daemon.
var BaseUrl string

var rootCmd = &cobra.Command{
	Use:   "pricescout-cli",
	Short: "pricescout-cli is a CLI interface for the price gap discovery daemon.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
