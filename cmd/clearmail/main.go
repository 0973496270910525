package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/clearmail/internal/commands"
)

var version = "dev"

func main() {
	opts := &commands.Options{}

	root := &cobra.Command{
		Use:   "clearmail",
		Short: "Resilience core for LLM-driven email classification",
		Long: `clearmail keeps the bookkeeping around its email classifier honest:
the last processed timestamp survives remote store outages, the run interval
is cached with a static fallback, and model calls are retried with backoff
and rate-limit cool-downs.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "clearmail.yaml", "Path to the configuration file")
	root.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "Environment file loaded before the configuration")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		commands.NewCheckpointCmd(opts),
		commands.NewIntervalCmd(opts),
		commands.NewSanitizeCmd(),
		commands.NewCompleteCmd(opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
