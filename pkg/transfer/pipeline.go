// Package transfer moves a single record from the fast tier to the durable tier.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hybridvault/pkg/core"
	"hybridvault/pkg/meta"
	"hybridvault/pkg/storage"
	"hybridvault/pkg/types"

	"github.com/rs/zerolog"
)

// State 迁移状态机
//
//	Pending -> Fetching -> Uploading -> Committed
//	              |            |
//	              +-> Failed <-+
type State int

const (
	Pending State = iota
	Fetching
	Uploading
	Committed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fetching:
		return "fetching"
	case Uploading:
		return "uploading"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == Committed || s == Failed
}

var (
	ErrNotEligible       = errors.New("record is not on the fast tier")
	ErrChecksumMismatch  = errors.New("fetched content does not match recorded hash")
	ErrCommitPersistence = errors.New("durable copy written but record update failed")
)

// StageError 标记失败发生在哪个阶段
// Stage 为 Committed 时表示提交持久化失败：两层都有副本
type StageError struct {
	Stage    State
	RecordID uint
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s record %d: %v", e.Stage, e.RecordID, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RecordStore 是提交阶段依赖的记录存储 (meta.Repository 实现)
type RecordStore interface {
	CommitTransition(ctx context.Context, id uint, version int64, t meta.Transition) error
}

// Outcome 单条记录的迁移结果
type Outcome struct {
	RecordID    uint
	State       State   // 终态: Committed 或 Failed
	FailedAt    State   // State == Failed 时有效
	Transitions []State // 经过的状态序列
	DurableKey  string
	Locator     string
	CleanupErr  error // 清理失败只记录，不影响结果
	Err         error // State == Failed 时为 *StageError
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Transitions = append(o.Transitions, s)
}

func (o *Outcome) fail(stage State, err error) *Outcome {
	o.FailedAt = stage
	o.Err = &StageError{Stage: stage, RecordID: o.RecordID, Err: err}
	o.enter(Failed)
	return o
}

// Options 控制迁移行为
type Options struct {
	Cleanup bool // 提交成功后删除 FastTier 副本
	Logger  zerolog.Logger
}

// Pipeline 执行 fast -> durable 迁移
// 可重入：对仍在 fast 层的记录重复调用总是安全的
type Pipeline struct {
	tiers   storage.Tiers
	store   RecordStore
	cleanup bool
	logger  zerolog.Logger
	now     func() time.Time
}

func NewPipeline(tiers storage.Tiers, store RecordStore, opts Options) *Pipeline {
	return &Pipeline{
		tiers:   tiers,
		store:   store,
		cleanup: opts.Cleanup,
		logger:  opts.Logger.With().Str("component", "transfer").Logger(),
		now:     time.Now,
	}
}

// DurableKey 计算 DurableTier 上的 Key
// 沿用原文件名中的唯一名部分，保证跨层命名连续
func DurableKey(rec *meta.ObjectRecord) string {
	return core.ObjectKey(rec.OwnerID, core.UniqueName(rec.ObjectKey))
}

// Transfer 迁移一条记录，总是返回终态的 Outcome
func (p *Pipeline) Transfer(ctx context.Context, rec *meta.ObjectRecord) *Outcome {
	out := &Outcome{RecordID: rec.ID}
	out.enter(Pending)

	log := p.logger.With().
		Uint("record_id", rec.ID).
		Int64("owner_id", int64(rec.OwnerID)).
		Str("object_key", rec.ObjectKey).
		Logger()

	if rec.Tier != types.TierFast {
		return out.fail(Pending, fmt.Errorf("%w (tier=%s)", ErrNotEligible, rec.Tier))
	}

	// 1. Fetching: 从 FastTier 读取完整内容
	out.enter(Fetching)
	data, err := storage.ReadAll(ctx, p.tiers.Fast, rec.ObjectKey)
	if err != nil {
		log.Warn().Err(err).Msg("fetch from fast tier failed")
		return out.fail(Fetching, err)
	}
	if h := rec.Hash(); h.IsValid() && core.HashContent(data) != h {
		log.Error().Str("hash", h.Short()).Msg("fast tier content does not match record hash")
		return out.fail(Fetching, ErrChecksumMismatch)
	}

	// 2. Uploading: 写入 DurableTier (重试由 DurableTier 自己负责)
	out.enter(Uploading)
	durableKey := DurableKey(rec)
	if err := p.tiers.Durable.Put(ctx, durableKey, data, rec.ContentType); err != nil {
		log.Warn().Err(err).Msg("upload to durable tier failed")
		return out.fail(Uploading, err)
	}
	locator, err := p.tiers.Durable.Locate(ctx, durableKey)
	if err != nil {
		return out.fail(Uploading, err)
	}
	out.DurableKey = durableKey
	out.Locator = locator

	// 3. Committed: 原子更新记录 (CAS)
	err = p.store.CommitTransition(ctx, rec.ID, rec.Version, meta.Transition{
		ObjectKey: durableKey,
		AccessURL: locator,
		SyncedAt:  p.now().UTC(),
	})
	if err != nil {
		// 两层都有副本，FastTier 副本保留
		log.Error().Err(err).Str("durable_key", durableKey).Msg("commit failed, object now exists in both tiers")
		return out.fail(Committed, fmt.Errorf("%w: %w", ErrCommitPersistence, err))
	}
	out.enter(Committed)
	log.Info().Str("durable_key", durableKey).Msg("record moved to durable tier")

	// 4. 可选清理：失败不回滚
	if p.cleanup {
		if err := p.tiers.Fast.Delete(ctx, rec.ObjectKey); err != nil {
			out.CleanupErr = err
			log.Warn().Err(err).Msg("failed to delete fast tier copy after sync")
		}
	}
	return out
}
