// Package syncjob implements the batch job that drives fast-tier records to
// the durable tier.
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hybridvault/pkg/meta"
	"hybridvault/pkg/metrics"
	"hybridvault/pkg/transfer"
	"hybridvault/pkg/types"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultBatchSize = 10

// ErrStoreUnavailable 记录存储在启动时不可达或无法枚举：整个运行失败
var ErrStoreUnavailable = errors.New("record store unavailable")

// Config 任务配置
type Config struct {
	BatchSize int // 每批条数，必须为正
	Workers   int // 批内并发数，<= 1 表示顺序处理
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// BatchStats 一次运行的统计
type BatchStats struct {
	Processed   int
	Succeeded   int
	Failed      int
	Errors      []string
	Eligible    int  // 启动时合格的记录数
	Interrupted bool // 收到停止信号，剩余记录留给下次运行
}

// Store 是任务依赖的记录存储 (meta.Repository 实现)
type Store interface {
	Ping(ctx context.Context) error
	ListByTier(ctx context.Context, tier types.Tier, limit int) ([]meta.ObjectRecord, error)
	SaveSyncRun(ctx context.Context, run *meta.SyncRun) error
}

// Transferer 迁移单条记录 (transfer.Pipeline 实现)
type Transferer interface {
	Transfer(ctx context.Context, rec *meta.ObjectRecord) *transfer.Outcome
}

// Job 同步任务
// 完全由持久化状态 (tier = fast) 驱动，没有检查点：重复运行总是安全的
// 同一时刻只应运行一个实例，由外部调度器保证
type Job struct {
	store    Store
	pipeline Transferer
	cfg      Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewJob(store Store, pipeline Transferer, cfg Config, m *metrics.Metrics, logger zerolog.Logger) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Job{
		store:    store,
		pipeline: pipeline,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With().Str("component", "syncjob").Logger(),
		now:      time.Now,
	}, nil
}

// Run 执行一次同步
// ctx 取消表示优雅停止：正在处理的条目会走到终态，未开始的条目留给下次运行
// 只有启动阶段无法访问记录存储时返回错误 (ErrStoreUnavailable)
func (j *Job) Run(ctx context.Context) (BatchStats, error) {
	var stats BatchStats
	startedAt := j.now()

	// 1. 启动检查
	// 启动前已收到停止信号：什么都不做，不算存储故障
	if err := ctx.Err(); err != nil {
		j.logger.Warn().Err(err).Msg("sync run stopped before start")
		stats.Interrupted = true
		return stats, nil
	}
	if err := j.store.Ping(ctx); err != nil {
		return j.abort(ctx, stats, err, "cannot reach record store, aborting run")
	}
	records, err := j.store.ListByTier(ctx, types.TierFast, 0)
	if err != nil {
		return j.abort(ctx, stats, err, "cannot enumerate eligible records, aborting run")
	}
	stats.Eligible = len(records)

	j.logger.Info().
		Int("eligible", stats.Eligible).
		Int("batch_size", j.cfg.BatchSize).
		Int("workers", max(j.cfg.Workers, 1)).
		Msg("sync run started")

	// 2. 分批顺序处理
	for start := 0; start < len(records); start += j.cfg.BatchSize {
		end := min(start+j.cfg.BatchSize, len(records))
		batchNo := start/j.cfg.BatchSize + 1

		j.logger.Debug().Int("batch", batchNo).Int("size", end-start).Msg("processing batch")
		j.runBatch(ctx, records[start:end], &stats)

		if ctx.Err() != nil {
			stats.Interrupted = true
			break
		}
	}
	if ctx.Err() != nil {
		stats.Interrupted = true
	}

	// 3. 汇总
	finishedAt := j.now()
	j.metrics.ObserveSyncRun(stats.Eligible, stats.Succeeded, stats.Failed, finishedAt.Sub(startedAt))
	j.record(startedAt, finishedAt, stats)

	j.logger.Info().
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Bool("interrupted", stats.Interrupted).
		Dur("elapsed", finishedAt.Sub(startedAt)).
		Msg("sync run finished")

	return stats, nil
}

// abort 处理启动阶段的存储错误
// 错误由停止信号引起时按中断处理，否则是 ErrStoreUnavailable
func (j *Job) abort(ctx context.Context, stats BatchStats, err error, msg string) (BatchStats, error) {
	if ctx.Err() != nil {
		j.logger.Warn().Err(err).Msg("sync run stopped before start")
		stats.Interrupted = true
		return stats, nil
	}
	j.logger.Error().Err(err).Msg(msg)
	return stats, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// runBatch 批内每条独立处理，互不影响
func (j *Job) runBatch(ctx context.Context, batch []meta.ObjectRecord, stats *BatchStats) {
	var mu sync.Mutex
	collect := func(out *transfer.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		stats.Processed++
		if out.State == transfer.Committed {
			stats.Succeeded++
			return
		}
		stats.Failed++
		stats.Errors = append(stats.Errors, fmt.Sprintf("failed to sync file %d: %v", out.RecordID, out.Err))
	}

	if j.cfg.Workers <= 1 {
		for i := range batch {
			if ctx.Err() != nil {
				return
			}
			collect(j.transferOne(ctx, &batch[i]))
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(j.cfg.Workers)
	for i := range batch {
		if ctx.Err() != nil {
			break
		}
		rec := &batch[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			collect(j.transferOne(ctx, rec))
			return nil
		})
	}
	_ = g.Wait()
}

// transferOne 已开始的条目不受停止信号影响，保证走到终态
func (j *Job) transferOne(ctx context.Context, rec *meta.ObjectRecord) *transfer.Outcome {
	return j.pipeline.Transfer(context.WithoutCancel(ctx), rec)
}

// record 持久化运行历史，失败只记日志
func (j *Job) record(startedAt, finishedAt time.Time, stats BatchStats) {
	run := &meta.SyncRun{
		StartedAt:   startedAt.UTC(),
		FinishedAt:  finishedAt.UTC(),
		Eligible:    stats.Eligible,
		Processed:   stats.Processed,
		Succeeded:   stats.Succeeded,
		Failed:      stats.Failed,
		Interrupted: stats.Interrupted,
	}
	if err := run.SetErrors(stats.Errors); err != nil {
		j.logger.Warn().Err(err).Msg("failed to encode sync errors")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.store.SaveSyncRun(ctx, run); err != nil {
		j.logger.Warn().Err(err).Msg("failed to save sync run history")
	}
}
