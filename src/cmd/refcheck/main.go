package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"refcheck/src/cmd/refcheck/runcmd"
	"refcheck/src/cmd/refcheck/verifycmd"
	"refcheck/src/cmd/refcheck/windowscmd"
)

var rootCmd = &cobra.Command{
	Use:          "refcheck",
	Short:        "Extract citations from long documents and check them against CrossRef and PubMed",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(runcmd.New())
	rootCmd.AddCommand(windowscmd.New())
	rootCmd.AddCommand(verifycmd.New())
}

func execute() error {
	return rootCmd.Execute()
}

func main() {
	if err := execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
