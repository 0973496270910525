package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/clearmail/internal/schedule"
)

// NewIntervalCmd creates the interval command.
func NewIntervalCmd(opts *Options) *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "interval",
		Short: "Print the run interval in seconds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
			defer cancel()

			secs := rt.interval.RunInterval(ctx)
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d (%s)\n", secs, time.Duration(secs)*time.Second); err != nil {
				return err
			}
			if !sync {
				return nil
			}
			if rt.cfg.Schedule == nil {
				return errors.New("--sync requires a schedule section in the config")
			}

			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return fmt.Errorf("loading AWS config: %w", err)
			}
			syncer, err := schedule.NewSyncer(scheduler.NewFromConfig(awsCfg), rt.cfg.Schedule, rt.logger)
			if err != nil {
				return err
			}
			res, err := syncer.Sync(ctx, secs)
			if err != nil {
				return err
			}
			status := "unchanged"
			if res.Updated {
				status = "updated"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schedule %s: %s (%s)\n", rt.cfg.Schedule.Name, res.Expression, status)
			return err
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "update the configured EventBridge schedule to this interval")
	return cmd
}
