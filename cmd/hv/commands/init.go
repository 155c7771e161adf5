package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const configTemplate = `# HybridVault configuration
database:
  driver: sqlite
  path: .hv/hybridvault.db

fast:
  type: disk
  path: .hv/objects
  base_url: http://localhost:8080/objects
  signing_key: change-me

durable:
  bucket: ""
  region: us-east-1

sync:
  batch_size: 10
  cleanup: false
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a local HybridVault workspace",
	Long:  `Create the .hv directory with a starter config.yaml (local sqlite record store and disk fast tier).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// 1. 获取当前路径
		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		// 2. 定义工作区路径 (.hv)
		hvPath := filepath.Join(wd, ".hv")
		objectsPath := filepath.Join(hvPath, "objects")
		cfgPath := filepath.Join(hvPath, "config.yaml")

		// 3. 检查是否已存在
		if _, err := os.Stat(cfgPath); err == nil {
			fmt.Fprintf(out, "⚠️  HybridVault workspace already exists in %s\n", hvPath)
			return nil
		}

		// 4. 创建目录结构
		if err := os.MkdirAll(objectsPath, 0755); err != nil {
			return fmt.Errorf("failed to create workspace directory: %w", err)
		}
		if err := os.WriteFile(cfgPath, []byte(configTemplate), 0600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Fprintf(out, "✅ Initialized HybridVault workspace in %s\n", hvPath)
		fmt.Fprintln(out, "   Set durable.bucket in config.yaml before running 'hv sync'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
