package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	dispatchKind    string
	dispatchFile    string
	dispatchTargets []string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Publish one content payload to every requested target.",
	Long: `Reads a JSON payload file and fans it out to the named targets,
one independent browser session per target. The aggregate report is printed
and, when a database is configured, persisted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		payload, err := loadPayload(dispatchKind, dispatchFile)
		if err != nil {
			return err
		}

		targets := dispatchTargets
		if len(targets) == 0 {
			for _, t := range a.cfg.Targets {
				targets = append(targets, t.Name)
			}
		}
		if len(targets) == 0 {
			return fmt.Errorf("no targets requested and none configured")
		}

		d, err := a.dispatcher()
		if err != nil {
			return err
		}
		report, err := d.Dispatch(ctx, payload, targets)
		if err != nil {
			return err
		}

		if path, err := a.recorder.SaveReport(report); err != nil {
			a.logger.Warn("Failed to write report evidence", zap.Error(err))
		} else {
			a.logger.Info("Report written", zap.String("path", path))
		}
		if a.store != nil {
			if err := a.store.SaveReport(ctx, report); err != nil {
				a.logger.Warn("Failed to persist report", zap.Error(err))
			}
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if failed := report.Failed(); failed > 0 {
			return fmt.Errorf("%d of %d targets failed", failed, len(report.Results))
		}
		return nil
	},
}

// loadPayload decodes the payload file into the variant named by kind.
func loadPayload(kind, path string) (schemas.ContentPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload file: %w", err)
	}
	switch schemas.PayloadKind(kind) {
	case schemas.PayloadProfile:
		var p schemas.ProfileUpdate
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding profile payload: %w", err)
		}
		return p, nil
	case schemas.PayloadSchedule:
		var p schemas.ScheduleUpdate
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding schedule payload: %w", err)
		}
		return p, nil
	case schemas.PayloadDiary:
		var p schemas.DiaryPost
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding diary payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown payload kind %q (want profile, schedule or diary)", kind)
	}
}

func init() {
	dispatchCmd.Flags().StringVarP(&dispatchKind, "kind", "k", "", "payload kind: profile, schedule or diary (required)")
	dispatchCmd.Flags().StringVarP(&dispatchFile, "file", "f", "", "path to the JSON payload file (required)")
	dispatchCmd.Flags().StringSliceVarP(&dispatchTargets, "targets", "t", nil, "target names (default: all configured)")
	dispatchCmd.MarkFlagRequired("kind")
	dispatchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(dispatchCmd)
}
