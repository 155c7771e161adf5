package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SyncSettings 同步任务的外部配置
type SyncSettings struct {
	BatchSize int
	Cleanup   bool
	Workers   int
	LogFile   string
}

// Sync 读取并校验同步任务配置
func Sync() (SyncSettings, error) {
	s := SyncSettings{
		BatchSize: viper.GetInt("sync.batch_size"),
		Cleanup:   viper.GetBool("sync.cleanup"),
		Workers:   viper.GetInt("sync.workers"),
		LogFile:   viper.GetString("sync.log_file"),
	}
	if s.BatchSize <= 0 {
		return s, fmt.Errorf("sync.batch_size must be a positive integer, got %d", s.BatchSize)
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}
	return s, nil
}

// MaxUploadBytes 上传大小上限
func MaxUploadBytes() int64 {
	return viper.GetInt64("upload.max_size_mb") << 20
}
