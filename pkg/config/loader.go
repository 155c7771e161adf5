package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		// 否则按优先级搜索
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .hv
		viper.AddConfigPath(".hv")
		// 3. 用户主目录下的 .hv
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".hv"))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (HV_DATABASE_HOST 等)
	viper.SetEnvPrefix("HV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 只是没找到配置文件：使用默认值和环境变量
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

// Used 返回实际加载的配置文件，没有则为空
func Used() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	// 数据库默认值
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.path", filepath.Join(".hv", "hybridvault.db"))

	// FastTier 默认值 (本地 MinIO)
	viper.SetDefault("fast.type", "s3")
	viper.SetDefault("fast.endpoint", "http://localhost:9000")
	viper.SetDefault("fast.region", "us-east-1")
	viper.SetDefault("fast.bucket", "local-files")
	viper.SetDefault("fast.path", filepath.Join(".hv", "objects"))
	viper.SetDefault("fast.url_ttl", 24*time.Hour)

	// DurableTier 默认值 (bucket 必须显式配置)
	viper.SetDefault("durable.region", "us-east-1")
	viper.SetDefault("durable.max_attempts", 3)

	// 缓存
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", 24*time.Hour)

	// 上传
	viper.SetDefault("upload.max_size_mb", 100)
	viper.SetDefault("upload.deny", []string{})

	// 同步任务
	viper.SetDefault("sync.batch_size", 10)
	viper.SetDefault("sync.cleanup", false)
	viper.SetDefault("sync.workers", 1)
	viper.SetDefault("sync.log_file", "")

	// 日志
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
}
