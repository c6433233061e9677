package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "aigdb",
		Short:         "aigdb: AI-assisted post-mortem debugging over GDB/MI",
		Long:          "aigdb drives a GDB machine-interface session over an executable and core dump, runs a fixed crash-autopsy script, and can hand the collected facts to an OpenAI-compatible model for narrative analysis.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// version needs no wiring; never let a broken environment hide it.
	rootCmd.AddCommand(newVersionCmd())

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newDebugCmd(app),
		newAnalyzeCmd(app),
		newTargetsCmd(app),
	)

	return rootCmd
}
