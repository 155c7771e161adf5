package commands

import (
	"fmt"
	"io"
	"os"

	"hybridvault/pkg/app"
	"hybridvault/pkg/config"
	"hybridvault/pkg/logging"
	"hybridvault/pkg/service"
	"hybridvault/pkg/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	ownerID int64

	// 全局应用实例，供子命令使用
	HV    *app.App
	Files *service.FileService

	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "hv",
	Short:         "HybridVault: hot/cold tiered file storage",
	SilenceUsage:  true,
	SilenceErrors: false,
	// 【关键】PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 跳过 init 命令的依赖检查 (因为它就是去创建环境的)
		if cmd.Name() == "init" || HV != nil {
			return nil
		}

		// CLI 日志写 stderr，stdout 留给 cat 等命令的输出
		logger, closer, err := logging.New(logging.Options{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
			Out:    os.Stderr,
		})
		if err != nil {
			return err
		}
		logCloser = closer
		if used := config.Used(); used != "" {
			logger.Debug().Str("file", used).Msg("using config file")
		}

		// 统一初始化 App
		HV, err = app.NewApp(cmd.Context(), logger)
		if err != nil {
			// 友好的错误提示
			return fmt.Errorf("failed to initialize hybridvault: %w\n(Did you run 'hv init'?)", err)
		}
		Files = service.NewFileService(HV)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			logCloser.Close()
		}
		return nil
	},
}

// Execute 是入口
func Execute() error {
	defer func() {
		if HV != nil {
			HV.Close()
		}
	}()
	return rootCmd.Execute()
}

// currentOwner 返回 --owner 指定的用户
func currentOwner() types.OwnerID {
	return types.OwnerID(ownerID)
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 定义全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hv/config.yaml)")

	// 2. 操作哪个用户的文件
	rootCmd.PersistentFlags().Int64Var(&ownerID, "owner", 1, "owner id to act as")

	// 3. 定义 log.level 参数，并绑定到 Viper
	// 这样用户既可以在 yaml 里写，也可以用 --log-level 覆盖
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Println("Failed to bind flag:", err)
		os.Exit(1)
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}
