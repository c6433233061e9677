package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sprookie/aigdb/internal/adapters/render/tui"
	"github.com/sprookie/aigdb/internal/application"
)

func newDebugCmd(a *app) *cobra.Command {
	var gdbPath string

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Open the interactive debug console",
		Long:  "Starts a two-pane console: a GDB log pane fed by the live session, an analysis pane for model output, and a command line for /load, /cmd, /analyze, /collect, or free-text questions.",
		RunE: func(_ *cobra.Command, _ []string) error {
			if gdbPath != "" {
				a.gdbPath = gdbPath
			}

			ctrl := a.newController(nil)
			defer func() { _ = ctrl.Close() }()

			opts := tui.Options{
				Session:   ctrl,
				Targets:   a.targets,
				Collector: application.NewAutopsyEngine(ctrl, nil, nil, application.WithBudget(a.analyzeBudget)),
			}
			if a.model != nil {
				registry := application.NewDebuggerTools(ctrl, nil)
				opts.Agent = application.NewAgent(a.model, registry)
				opts.Analyzer = application.NewAutopsyEngine(ctrl,
					application.NewNarrativeSynthesizer(a.model), nil,
					application.WithBudget(a.analyzeBudget))
			}

			return tui.Run(opts)
		},
	}

	cmd.Flags().StringVar(&gdbPath, "gdb", "", "path to the gdb binary (default $AIGDB_GDB_PATH or \"gdb\")")

	return cmd
}
