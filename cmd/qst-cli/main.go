package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

// errCasesFailed signals that the run completed but not every case passed.
var errCasesFailed = errors.New("one or more test cases failed")

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "qst",
		Short:   "qst - search relevance tester for Qdrant collections",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default qst.yaml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(casesCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errCasesFailed) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
