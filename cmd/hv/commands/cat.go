package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat [file-id]",
	Short: "Write file content to stdout",
	Long:  `Stream the file content from whichever tier currently holds it. Redirect to save binary content: hv cat 3 > out.bin`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Files == nil {
			return fmt.Errorf("app not initialized")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		rc, _, err := Files.Open(cmd.Context(), currentOwner(), id)
		if err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		defer rc.Close()

		if _, err := io.Copy(cmd.OutOrStdout(), rc); err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		return nil
	},
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid file id %q", s)
	}
	return uint(id), nil
}

func init() {
	rootCmd.AddCommand(catCmd)
}
