package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show sync run history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if HV == nil {
			return fmt.Errorf("app not initialized")
		}
		out := cmd.OutOrStdout()

		runs, err := HV.Repository.ListSyncRuns(cmd.Context(), runsLimit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No sync runs recorded.")
			return nil
		}

		for _, r := range runs {
			// 使用黄色高亮 run ID (类似 git log)
			fmt.Fprintf(out, "\033[33mrun %d\033[0m\n", r.ID)
			fmt.Fprintf(out, "Started:  %s\n", r.StartedAt.Local().Format(time.RFC1123Z))
			fmt.Fprintf(out, "Duration: %s\n", r.Duration().Round(time.Millisecond))
			fmt.Fprintf(out, "Result:   %d/%d processed, %d succeeded, %d failed", r.Processed, r.Eligible, r.Succeeded, r.Failed)
			if r.Interrupted {
				fmt.Fprint(out, " (interrupted)")
			}
			fmt.Fprintln(out)
			for _, e := range r.ErrorList() {
				fmt.Fprintf(out, "    %s\n", e)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
