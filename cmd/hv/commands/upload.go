package commands

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"hybridvault/pkg/ingester"

	"github.com/spf13/cobra"
)

var uploadContentType string

var uploadCmd = &cobra.Command{
	Use:   "upload [files...]",
	Short: "Upload files to the fast tier",
	Long:  `Upload one or more files. Content already stored for the owner is detected by hash and not stored again.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Files == nil {
			return fmt.Errorf("app not initialized")
		}
		out := cmd.OutOrStdout()

		success, failures := 0, 0
		for _, path := range args {
			if err := uploadFile(cmd, path); err != nil {
				fmt.Fprintf(out, "❌ %s: %v\n", path, err)
				failures++
				continue
			}
			success++
		}

		if len(args) > 1 {
			fmt.Fprintf(out, "\nSummary: %d succeeded, %d failed.\n", success, failures)
		}
		if failures > 0 {
			return fmt.Errorf("some files failed to upload")
		}
		return nil
	},
}

func uploadFile(cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := uploadContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}

	res, err := Files.Upload(cmd.Context(), ingester.UploadRequest{
		Owner:       currentOwner(),
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Body:        f,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Duplicate {
		fmt.Fprintf(out, "♻️  %s: duplicate of file %d (%s)\n", path, res.Record.ID, res.Record.OriginalFilename)
		return nil
	}
	fmt.Fprintf(out, "✅ %s: stored as file %d [%s] %s\n", path, res.Record.ID, res.Record.Hash().Short(), res.Record.ObjectKey)
	return nil
}

func init() {
	uploadCmd.Flags().StringVar(&uploadContentType, "content-type", "", "override detected content type")
	rootCmd.AddCommand(uploadCmd)
}
