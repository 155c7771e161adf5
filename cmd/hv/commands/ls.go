package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var lsLimit int

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List files, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Files == nil {
			return fmt.Errorf("app not initialized")
		}

		recs, err := Files.List(cmd.Context(), currentOwner(), lsLimit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No files yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIER\tSIZE\tHASH\tUPLOADED\tNAME")
		for _, r := range recs {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
				r.ID, r.Tier, r.Size, r.Hash().Short(),
				r.UploadedAt.Local().Format(time.DateTime), r.OriginalFilename)
		}
		return w.Flush()
	},
}

func init() {
	lsCmd.Flags().IntVarP(&lsLimit, "limit", "n", 50, "maximum number of files to list (0 = all)")
	rootCmd.AddCommand(lsCmd)
}
