package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [file-ids...]",
	Short: "Delete files and their stored objects",
	Long:  `Delete the stored object from its current tier and then the record. A storage failure is reported but the record is still removed.`,
	Args:  cobra.MinimumNArgs(1), // 至少指定一个文件
	RunE: func(cmd *cobra.Command, args []string) error {
		if Files == nil {
			return fmt.Errorf("app not initialized")
		}
		out := cmd.OutOrStdout()

		failures := 0
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				fmt.Fprintf(out, "❌ %v\n", err)
				failures++
				continue
			}

			res, err := Files.Delete(cmd.Context(), currentOwner(), id)
			if err != nil {
				fmt.Fprintf(out, "❌ file %d: %v\n", id, err)
				failures++
				continue
			}
			if res.StorageErr != nil {
				fmt.Fprintf(out, "⚠️  file %d: record removed, stored object left behind: %v\n", id, res.StorageErr)
				continue
			}
			fmt.Fprintf(out, "Deleted: %d (%s)\n", id, res.Record.OriginalFilename)
		}

		if failures > 0 {
			return fmt.Errorf("%d deletions failed", failures)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
