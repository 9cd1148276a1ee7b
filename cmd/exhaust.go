package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/quota"
)

var exhaustTarget string

var exhaustCmd = &cobra.Command{
	Use:   "exhaust",
	Short: "Drive one target's refresh quota down to zero.",
	Long: `Logs in to the target, reads the remaining/total counter and
triggers refresh actions until the counter reports zero, the attempt
ceiling is reached, or the counter becomes unreadable. Every attempt is
recorded with a before/after value and a screenshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		adapter, err := a.adapterFor(exhaustTarget)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := adapter.Close(ctx); cerr != nil {
				a.logger.Warn("Adapter close failed", zap.Error(cerr))
			}
		}()

		runner := quota.NewRunner(adapter, a.recorder, a.logger, quota.Options{
			MaxAttempts: a.cfg.Quota.MaxAttempts,
			Pace:        a.cfg.Quota.PaceInterval,
		})
		run, runErr := runner.Run(ctx)

		if path, err := a.recorder.SaveQuotaRun(run); err != nil {
			a.logger.Warn("Failed to write run evidence", zap.Error(err))
		} else {
			a.logger.Info("Run log written", zap.String("path", path))
		}
		if a.store != nil {
			if err := a.store.SaveQuotaRun(ctx, run); err != nil {
				a.logger.Warn("Failed to persist run", zap.Error(err))
			}
		}

		out, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding run: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if run.Status == schemas.RunAborted {
			return fmt.Errorf("run aborted: %w", runErr)
		}
		return nil
	},
}

func init() {
	exhaustCmd.Flags().StringVarP(&exhaustTarget, "target", "t", "", "target name (required)")
	exhaustCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(exhaustCmd)
}
