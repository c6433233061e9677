package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTargetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List recently loaded executable/core pairs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			targets, err := a.targets.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list targets: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(targets) == 0 {
				_, err := fmt.Fprintln(out, "no targets recorded yet; load one with aigdb analyze or /load in aigdb debug")
				return err
			}

			for _, target := range targets {
				line := fmt.Sprintf("%s  %s", target.ExecutablePath, target.CorePath)
				if !target.LastLoadedAt.IsZero() {
					line += "  (" + target.LastLoadedAt.Format("2006-01-02 15:04") + ")"
				}
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
