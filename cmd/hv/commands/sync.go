package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Move fast-tier files to durable storage",
	Long: `Run one sync pass: every fast-tier record is copied to the durable tier and committed.
Individual failures are reported and retried on the next run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if HV == nil {
			return fmt.Errorf("app not initialized")
		}
		out := cmd.OutOrStdout()

		start := time.Now()
		stats, err := HV.Job.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync aborted: %w", err)
		}

		if stats.Eligible == 0 {
			fmt.Fprintln(out, "Nothing to sync.")
			return nil
		}
		fmt.Fprintf(out, "Processed %d of %d: %d succeeded, %d failed (%s)\n",
			stats.Processed, stats.Eligible, stats.Succeeded, stats.Failed,
			time.Since(start).Round(time.Millisecond))
		for _, e := range stats.Errors {
			fmt.Fprintf(out, "  ❌ %s\n", e)
		}
		if stats.Interrupted {
			fmt.Fprintln(out, "⚠️  Interrupted, remaining files will be picked up by the next run.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
