// Package index implements the content address index: the (owner, hash)
// lookup that lets the upload path skip storing content an owner already has.
package index

import (
	"context"
	"errors"
	"fmt"

	"hybridvault/pkg/meta"
	"hybridvault/pkg/types"
)

// Store 是索引依赖的记录存储 (meta.Repository 实现)
type Store interface {
	GetByID(ctx context.Context, id uint) (*meta.ObjectRecord, error)
	FindByOwnerHash(ctx context.Context, owner types.OwnerID, hash types.ContentHash) (*meta.ObjectRecord, error)
	Create(ctx context.Context, rec *meta.ObjectRecord) error
}

// CacheEntry 是缓存中 (owner, hash) 指向的记录
// Size 用于命中时的快速校验，0 表示未知
type CacheEntry struct {
	RecordID uint
	Size     int64
}

// Cache 是可选的查找缓存 (storage/cache.RedisIndexCache 实现)
// 实现必须自行吞掉后端故障：缓存不可用只影响性能
type Cache interface {
	Get(ctx context.Context, owner types.OwnerID, hash types.ContentHash) (CacheEntry, bool)
	Set(ctx context.Context, owner types.OwnerID, hash types.ContentHash, entry CacheEntry)
	Delete(ctx context.Context, owner types.OwnerID, hash types.ContentHash)
}

// Index 管理 (owner, hash) -> record 的映射
// 唯一性由记录存储的唯一约束保证，缓存只是加速
type Index struct {
	store Store
	cache Cache
}

// New 创建索引，cache 可以为 nil
func New(store Store, cache Cache) *Index {
	return &Index{store: store, cache: cache}
}

// Lookup 查找 owner 是否已有该内容
// 未命中返回 (nil, nil)；没有 hash 的历史记录永远不会命中
func (i *Index) Lookup(ctx context.Context, owner types.OwnerID, hash types.ContentHash) (*meta.ObjectRecord, error) {
	if !hash.IsValid() {
		return nil, fmt.Errorf("invalid content hash %q", hash)
	}

	// 1. 查缓存
	if i.cache != nil {
		if entry, ok := i.cache.Get(ctx, owner, hash); ok {
			rec, err := i.store.GetByID(ctx, entry.RecordID)
			switch {
			case err == nil && matches(rec, owner, hash, entry):
				return rec, nil
			case err == nil || errors.Is(err, meta.ErrRecordNotFound):
				// 缓存过期 (记录被删除或不匹配)，丢弃后回源
				i.cache.Delete(ctx, owner, hash)
			default:
				return nil, err
			}
		}
	}

	// 2. 回源数据库
	rec, err := i.store.FindByOwnerHash(ctx, owner, hash)
	if err != nil {
		return nil, fmt.Errorf("index lookup failed: %w", err)
	}

	// 3. 缓存回填
	if rec != nil && i.cache != nil {
		i.cache.Set(ctx, owner, hash, entryFor(rec))
	}
	return rec, nil
}

// Register 登记一条新记录
// 并发上传同一内容时，后到者得到 meta.ErrDuplicateContent
func (i *Index) Register(ctx context.Context, rec *meta.ObjectRecord) error {
	if !rec.Hash().IsValid() {
		return fmt.Errorf("cannot register record without a valid content hash")
	}
	if err := i.store.Create(ctx, rec); err != nil {
		return err
	}
	if i.cache != nil {
		i.cache.Set(ctx, rec.OwnerID, rec.Hash(), entryFor(rec))
	}
	return nil
}

// Forget 在记录删除后清理缓存
func (i *Index) Forget(ctx context.Context, rec *meta.ObjectRecord) {
	if i.cache == nil || rec.Hash().IsZero() {
		return
	}
	i.cache.Delete(ctx, rec.OwnerID, rec.Hash())
}

func entryFor(rec *meta.ObjectRecord) CacheEntry {
	return CacheEntry{RecordID: rec.ID, Size: rec.Size}
}

// matches 校验缓存指向的记录确实是 (owner, hash) 对应的那条
func matches(rec *meta.ObjectRecord, owner types.OwnerID, hash types.ContentHash, entry CacheEntry) bool {
	if rec.OwnerID != owner || rec.Hash() != hash {
		return false
	}
	return entry.Size == 0 || entry.Size == rec.Size
}
