// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"hybridvault/pkg/config"
	"hybridvault/pkg/ignore"
	"hybridvault/pkg/index"
	"hybridvault/pkg/ingester"
	"hybridvault/pkg/meta"
	"hybridvault/pkg/metrics"
	"hybridvault/pkg/storage"
	"hybridvault/pkg/storage/cache"
	"hybridvault/pkg/storage/disk"
	"hybridvault/pkg/storage/s3"
	"hybridvault/pkg/syncjob"
	"hybridvault/pkg/transfer"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务，存储层以显式注入的 Tiers 出现，没有全局客户端
type App struct {
	DB         *meta.DB
	Repository *meta.Repository
	Tiers      storage.Tiers
	Index      *index.Index
	Ingester   *ingester.Ingester
	Pipeline   *transfer.Pipeline
	Job        *syncjob.Job
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger

	closers []io.Closer
}

// Options 组装 App 所需的非基础设施参数
type Options struct {
	MaxUploadBytes int64
	Deny           *ignore.Matcher
	Sync           config.SyncSettings
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context, logger zerolog.Logger) (*App, error) {
	syncCfg, err := config.Sync()
	if err != nil {
		return nil, err
	}

	// 1. 初始化数据库
	db, err := initDB(ctx)
	if err != nil {
		return nil, err
	}

	// 2. 初始化存储层 (Dependency Injection)
	fast, err := initFastTier(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init fast tier: %w", err)
	}
	durable, err := initDurableTier(ctx, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init durable tier: %w", err)
	}

	// 3. 可选的 Redis 索引缓存
	var (
		idxCache index.Cache
		closers  []io.Closer
	)
	if url := viper.GetString("cache.redis_url"); url != "" {
		c, err := cache.NewRedisIndexCache(cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration("cache.ttl"),
		}, logger)
		if err != nil {
			// 缓存只是加速：连不上就降级为无缓存模式
			logger.Warn().Err(err).Msg("redis cache disabled")
		} else {
			idxCache = c
			closers = append(closers, c)
		}
	}

	a, err := Assemble(db, storage.Tiers{Fast: fast, Durable: durable}, idxCache, Options{
		MaxUploadBytes: config.MaxUploadBytes(),
		Deny:           ignore.NewMatcher(viper.GetStringSlice("upload.deny")),
		Sync:           syncCfg,
		Metrics:        metrics.New(),
		Logger:         logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	a.closers = append(a.closers, closers...)
	return a, nil
}

// Assemble 用现成的基础设施组装 App (测试和 NewApp 共用)
func Assemble(db *meta.DB, tiers storage.Tiers, idxCache index.Cache, opts Options) (*App, error) {
	repo := meta.NewRepository(db)
	idx := index.New(repo, idxCache)

	ing := ingester.NewIngester(tiers.Fast, idx, ingester.Options{
		MaxSize: opts.MaxUploadBytes,
		Deny:    opts.Deny,
		Metrics: opts.Metrics,
		Logger:  opts.Logger,
	})

	pipeline := transfer.NewPipeline(tiers, repo, transfer.Options{
		Cleanup: opts.Sync.Cleanup,
		Logger:  opts.Logger,
	})

	batchSize := opts.Sync.BatchSize
	if batchSize == 0 {
		batchSize = syncjob.DefaultBatchSize
	}
	job, err := syncjob.NewJob(repo, pipeline, syncjob.Config{
		BatchSize: batchSize,
		Workers:   opts.Sync.Workers,
	}, opts.Metrics, opts.Logger)
	if err != nil {
		return nil, err
	}

	return &App{
		DB:         db,
		Repository: repo,
		Tiers:      tiers,
		Index:      idx,
		Ingester:   ing,
		Pipeline:   pipeline,
		Job:        job,
		Metrics:    opts.Metrics,
		Logger:     opts.Logger,
	}, nil
}

// Close 释放数据库和缓存连接
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func initDB(ctx context.Context) (*meta.DB, error) {
	db, err := meta.NewDB(ctx, meta.Config{
		Driver:   viper.GetString("database.driver"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.name"),
		SSLMode:  viper.GetString("database.sslmode"),
		Path:     viper.GetString("database.path"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init record store: %w", err)
	}
	return db, nil
}

// initFastTier 根据 fast.type 选择 FastTier 实现
func initFastTier(ctx context.Context) (storage.Tier, error) {
	switch typ := viper.GetString("fast.type"); typ {
	case "disk":
		tier, err := disk.NewAdapter(disk.Config{
			Root:       viper.GetString("fast.path"),
			BaseURL:    viper.GetString("fast.base_url"),
			SigningKey: viper.GetString("fast.signing_key"),
			URLTTL:     viper.GetDuration("fast.url_ttl"),
		})
		if err != nil {
			return nil, err
		}
		return tier, nil
	case "s3", "minio":
		tier, err := s3.NewFastAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("fast.endpoint"),
			Region:          viper.GetString("fast.region"),
			Bucket:          viper.GetString("fast.bucket"),
			AccessKeyID:     viper.GetString("fast.access_key"),
			SecretAccessKey: viper.GetString("fast.secret_key"),
		}, viper.GetDuration("fast.url_ttl"))
		if err != nil {
			return nil, err
		}
		return tier, nil
	default:
		return nil, fmt.Errorf("unsupported fast tier type: %s", typ)
	}
}

func initDurableTier(ctx context.Context, logger zerolog.Logger) (storage.Tier, error) {
	bucket := viper.GetString("durable.bucket")
	if bucket == "" {
		return nil, fmt.Errorf("durable.bucket is required")
	}
	tier, err := s3.NewDurableAdapter(ctx, s3.DurableConfig{
		Config: s3.Config{
			Endpoint:        viper.GetString("durable.endpoint"),
			Region:          viper.GetString("durable.region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("durable.access_key"),
			SecretAccessKey: viper.GetString("durable.secret_key"),
		},
		MaxAttempts:   viper.GetInt("durable.max_attempts"),
		PublicBaseURL: viper.GetString("durable.public_base_url"),
	}, logger)
	if err != nil {
		return nil, err
	}
	return tier, nil
}
