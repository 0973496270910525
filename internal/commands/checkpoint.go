package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/clearmail/internal/checkpoint"
)

const storeTimeout = 30 * time.Second

// NewCheckpointCmd creates the checkpoint command and its get/save subcommands.
func NewCheckpointCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Read or write the last processed timestamp",
	}
	cmd.AddCommand(newCheckpointGetCmd(opts), newCheckpointSaveCmd(opts))
	return cmd
}

func newCheckpointGetCmd(opts *Options) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
			defer cancel()

			res := rt.checkpoints.Lookup(ctx)
			out := cmd.OutOrStdout()
			if quiet {
				_, err = fmt.Fprintln(out, res.Value)
				return err
			}
			_, _ = color.New(color.Bold).Fprintf(out, "%s", res.Value)
			_, err = fmt.Fprintf(out, "  (source: %s)\n", describeSource(res.Source))
			return err
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the timestamp")
	return cmd
}

func newCheckpointSaveCmd(opts *Options) *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "save [timestamp]",
		Short: "Record a checkpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ts string
			switch {
			case now:
				ts = time.Now().UTC().Format(checkpoint.TimestampLayout)
			case len(args) == 1:
				ts = args[0]
			default:
				return fmt.Errorf("a timestamp argument or --now is required")
			}

			rt, err := setup(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
			defer cancel()

			if err := rt.checkpoints.Save(ctx, ts); err != nil {
				return fmt.Errorf("saving checkpoint: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s Saved checkpoint %s\n", color.GreenString("✓"), ts)
			return err
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "Save the current time")
	return cmd
}

func describeSource(source string) string {
	switch source {
	case checkpoint.SourceRemote:
		return "remote store"
	case checkpoint.SourceFresh:
		return "fresh start, nothing stored"
	case checkpoint.SourceLocal:
		return "local file"
	case checkpoint.SourceDefault:
		return color.YellowString("current time, no stored checkpoint")
	default:
		return source
	}
}
