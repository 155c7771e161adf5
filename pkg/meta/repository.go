package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hybridvault/pkg/types"

	"gorm.io/gorm"
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
	ErrDuplicateContent = errors.New("content already registered for owner")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db  *DB
	now func() time.Time
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Transition 描述一次 fast -> durable 的迁移结果
type Transition struct {
	ObjectKey string
	AccessURL string
	SyncedAt  time.Time
}

// isDuplicateKey 兼容不同数据库 (PG 与 SQLite) 的唯一约束错误
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// -----------------------------------------------------------------------------
// 1. 文件记录 (Object Records)
// -----------------------------------------------------------------------------

// Create 插入新记录
// (owner, hash) 已存在时返回 ErrDuplicateContent
func (r *Repository) Create(ctx context.Context, rec *ObjectRecord) error {
	if !rec.Tier.IsValid() {
		return fmt.Errorf("invalid tier %q", rec.Tier)
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = r.now().UTC()
	}

	if err := r.db.GetConn().WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateContent
		}
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*ObjectRecord, error) {
	var rec ObjectRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("id = ?", id).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByOwnerHash 按 (owner, hash) 查找
// 未命中返回 (nil, nil)
func (r *Repository) FindByOwnerHash(ctx context.Context, owner types.OwnerID, hash types.ContentHash) (*ObjectRecord, error) {
	var rec ObjectRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("owner_id = ? AND content_hash = ?", owner, hash.String()).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByOwner 列出某个用户的文件，最新的在前
func (r *Repository) ListByOwner(ctx context.Context, owner types.OwnerID, limit int) ([]ObjectRecord, error) {
	var recs []ObjectRecord
	q := r.db.GetConn().WithContext(ctx).
		Where("owner_id = ?", owner).
		Order("uploaded_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// ListByTier 按 ID 升序列出某一层的记录，limit <= 0 表示全部
func (r *Repository) ListByTier(ctx context.Context, tier types.Tier, limit int) ([]ObjectRecord, error) {
	var recs []ObjectRecord
	q := r.db.GetConn().WithContext(ctx).
		Where("tier = ?", tier).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", tier, err)
	}
	return recs, nil
}

func (r *Repository) CountByTier(ctx context.Context, tier types.Tier) (int64, error) {
	var n int64
	err := r.db.GetConn().WithContext(ctx).
		Model(&ObjectRecord{}).
		Where("tier = ?", tier).
		Count(&n).Error
	return n, err
}

// CommitTransition 原子地把记录切换到 durable (CAS - Compare And Swap)
// version: 迁移开始时读到的版本号。记录被删除、已迁移或被并发修改时返回 ErrConcurrentUpdate。
func (r *Repository) CommitTransition(ctx context.Context, id uint, version int64, t Transition) error {
	// SQL: UPDATE files SET tier='durable', ..., version = version + 1
	//      WHERE id = ? AND tier = 'fast' AND version = ?
	result := r.db.GetConn().WithContext(ctx).
		Model(&ObjectRecord{}).
		Where("id = ? AND tier = ? AND version = ?", id, types.TierFast, version).
		Updates(map[string]any{
			"tier":       types.TierDurable,
			"object_key": t.ObjectKey,
			"access_url": t.AccessURL,
			"synced_at":  t.SyncedAt,
			"version":    gorm.Expr("version + 1"),
			"updated_at": r.now().UTC(),
		})

	if result.Error != nil {
		return result.Error
	}

	// 关键检查：如果影响行数为 0，说明 version 不匹配（被人抢先改了）
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// UpdateAccessURL 刷新访问地址 (签名 URL 过期后重新签发)
// tier: 调用方签发 URL 时读到的层。记录已被删除或已迁移到其他层时返回 ErrConcurrentUpdate，
// 保证 access_url 始终属于记录当前所在的层。不修改 version，不影响进行中的迁移。
func (r *Repository) UpdateAccessURL(ctx context.Context, id uint, tier types.Tier, url string) error {
	// SQL: UPDATE files SET access_url = ? WHERE id = ? AND tier = ?
	result := r.db.GetConn().WithContext(ctx).
		Model(&ObjectRecord{}).
		Where("id = ? AND tier = ?", id, tier).
		Updates(map[string]any{
			"access_url": url,
			"updated_at": r.now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// Delete 删除记录 (CAS)
// version: 调用方读到的版本号。记录不存在返回 ErrRecordNotFound；
// 期间被迁移或修改过返回 ErrConcurrentUpdate，调用方应重新读取后再删
func (r *Repository) Delete(ctx context.Context, id uint, version int64) error {
	result := r.db.GetConn().WithContext(ctx).
		Where("id = ? AND version = ?", id, version).
		Delete(&ObjectRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConcurrentUpdate
	}
	return nil
}

// Ping 检查记录存储是否可达
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// -----------------------------------------------------------------------------
// 2. 同步历史 (Sync Runs)
// -----------------------------------------------------------------------------

func (r *Repository) SaveSyncRun(ctx context.Context, run *SyncRun) error {
	if err := r.db.GetConn().WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to save sync run: %w", err)
	}
	return nil
}

// ListSyncRuns 最近的运行在前
func (r *Repository) ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	var runs []SyncRun
	q := r.db.GetConn().WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}
