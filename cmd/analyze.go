package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprookie/aigdb/internal/application"
	"github.com/sprookie/aigdb/internal/domain"
	"github.com/sprookie/aigdb/internal/ports"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		exePath    string
		corePath   string
		jsonOutput bool
		noAI       bool
		gdbPath    string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the crash-autopsy script over an executable and core dump",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if gdbPath != "" {
				a.gdbPath = gdbPath
			}

			ctrl := a.newController(nil)
			defer func() { _ = ctrl.Close() }()

			var synth ports.ReportSynthesizer
			if a.model != nil && !noAI {
				synth = application.NewNarrativeSynthesizer(a.model)
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			err := runWithSpinner(ctx, cmd.ErrOrStderr(), "Loading core dump...",
				func(ctx context.Context, _ func(string)) error {
					return ctrl.Load(ctx, exePath, corePath)
				})
			if err != nil {
				return fmt.Errorf("load target: %w", err)
			}

			var report domain.AutopsyReport
			err = runWithSpinner(ctx, cmd.ErrOrStderr(), "Collecting crash facts...",
				func(ctx context.Context, status func(string)) error {
					engine := application.NewAutopsyEngine(ctrl, synth, nil,
						application.WithBudget(a.analyzeBudget),
						application.WithStepLog(func(tag, _ string) {
							status(fmt.Sprintf("Collecting crash facts (%s)...", tag))
						}))
					var analyzeErr error
					report, analyzeErr = engine.Analyze(ctx)
					return analyzeErr
				})
			if err != nil {
				return fmt.Errorf("analyze core: %w", err)
			}

			// Best effort; a read-only home dir must not fail the run.
			recordCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			_ = a.targets.Record(recordCtx, domain.Target{
				ExecutablePath: exePath,
				CorePath:       corePath,
				LastLoadedAt:   time.Now(),
			})

			if jsonOutput {
				encoded, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
				_, err = fmt.Fprintln(out, string(encoded))
				return err
			}

			if report.Narrative != "" {
				_, _ = fmt.Fprintln(out, report.Narrative)
			} else {
				_, _ = fmt.Fprint(out, report.Evidence())
			}
			if failed := report.FailedSteps(); len(failed) > 0 {
				_, _ = fmt.Fprintf(out, "\nincomplete steps: %v\n", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exePath, "exe", "", "path to the crashed executable")
	cmd.Flags().StringVar(&corePath, "core", "", "path to the core dump")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the raw report as JSON")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip narrative synthesis, print collected facts only")
	cmd.Flags().StringVar(&gdbPath, "gdb", "", "path to the gdb binary (default $AIGDB_GDB_PATH or \"gdb\")")
	_ = cmd.MarkFlagRequired("exe")
	_ = cmd.MarkFlagRequired("core")

	return cmd
}
