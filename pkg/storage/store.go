package storage

import (
	"context"
	"fmt"
	"io"

	"hybridvault/pkg/types"
)

// Tier defines the capability set of a storage tier.
// 两个实现: FastTier (MinIO / 本地磁盘) 和 DurableTier (云端 S3)
type Tier interface {
	// Kind 返回该实现对应的存储层
	Kind() types.Tier

	// Put 将字节写入 key
	// 这里使用 []byte 而不是 io.Reader：DurableTier 需要在重试时重放 Body
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get 读取对象，调用者负责 Close
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除对象，对象不存在时不报错
	Delete(ctx context.Context, key string) error

	// Locate 返回访问地址 (Access Locator)
	// FastTier: 有时效的签名 URL；DurableTier: 稳定的直链
	Locate(ctx context.Context, key string) (string, error)
}

// Tiers 是一对显式注入的存储层，取代全局单例客户端
type Tiers struct {
	Fast    Tier
	Durable Tier
}

// For 按记录的 tier 字段分派到具体实现
func (t Tiers) For(tier types.Tier) (Tier, error) {
	switch tier {
	case types.TierFast:
		if t.Fast == nil {
			return nil, fmt.Errorf("fast tier not configured")
		}
		return t.Fast, nil
	case types.TierDurable:
		if t.Durable == nil {
			return nil, fmt.Errorf("durable tier not configured")
		}
		return t.Durable, nil
	default:
		return nil, fmt.Errorf("unknown storage tier %q", tier)
	}
}

// ReadAll 读取整个对象并关闭 Reader
func ReadAll(ctx context.Context, t Tier, key string) ([]byte, error) {
	rc, err := t.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, Transient("read", key, err)
	}
	return data, nil
}
