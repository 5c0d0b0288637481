package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recipebot/internal/preflight"
)

const statusCheckTimeout = 20 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check binaries, directories, the quota store and remote APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(cmd.Context(), statusCheckTimeout)
			defer cancel()

			results := preflight.RunAll(checkCtx, cfg)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderChecks(results, colorEnabled(out)))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			return nil
		},
	}
}

func renderChecks(results []preflight.Result, color bool) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		rows = append(rows, []string{
			result.Name,
			passLabel(result.Passed, result.Optional, color),
			yesNo(!result.Optional),
			result.Detail,
		})
	}
	return renderTable(
		[]string{"Check", "Status", "Required", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
