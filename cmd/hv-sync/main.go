package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hybridvault/pkg/app"
	"hybridvault/pkg/config"
	"hybridvault/pkg/logging"

	"github.com/spf13/viper"
)

func main() {
	os.Exit(run())
}

// run 执行一次同步，返回进程退出码
// 单条失败不影响退出码，只有启动阶段的致命错误返回 1
func run() int {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is $HOME/.hv/config.yaml)")
	metricsFile := flag.String("metrics-file", "", "write Prometheus metrics to this file after the run (textfile collector)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config error: %v\n", err)
		return 1
	}

	// 2. Logger (文件 + stdout)
	logger, closer, err := logging.New(logging.Options{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
		File:   viper.GetString("sync.log_file"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Logger error: %v\n", err)
		return 1
	}
	defer closer.Close()

	// 3. Graceful Shutdown: 收到信号后不再领取新条目，进行中的条目跑完
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Init Core Application
	application, err := app.NewApp(ctx, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize app")
		return 1
	}
	defer application.Close()

	// 5. Run
	stats, err := application.Job.Run(ctx)
	if *metricsFile != "" {
		if werr := application.Metrics.WriteTextfile(*metricsFile); werr != nil {
			logger.Warn().Err(werr).Str("path", *metricsFile).Msg("failed to write metrics file")
		}
	}
	if err != nil {
		logger.Error().Err(err).Msg("sync aborted")
		return 1
	}

	logger.Info().
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Bool("interrupted", stats.Interrupted).
		Msg("sync finished")
	return 0
}
