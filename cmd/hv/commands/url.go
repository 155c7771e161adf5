package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var urlCmd = &cobra.Command{
	Use:   "url [file-id]",
	Short: "Print the access URL of a file",
	Long:  `Fast-tier files get a freshly signed, time-limited URL. Durable-tier files return their stable URL.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Files == nil {
			return fmt.Errorf("app not initialized")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		url, err := Files.Locate(cmd.Context(), currentOwner(), id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(urlCmd)
}
