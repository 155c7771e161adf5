// pkg/types/common.go
package types

import "strconv"

// OwnerID 标识对象的所有者 (用户 ID)
type OwnerID int64

func (o OwnerID) String() string { return strconv.FormatInt(int64(o), 10) }

// ContentHash 代表对象内容的 SHA-256 摘要 (小写 Hex String)
// 这是一个“值对象”，应当是不可变的。
type ContentHash string

func (h ContentHash) String() string { return string(h) }

func (h ContentHash) IsZero() bool { return h == "" }

// IsValid 要求 64 位小写十六进制
func (h ContentHash) IsValid() bool {
	if len(h) != 64 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Short 返回前 8 位，用于日志
func (h ContentHash) Short() string {
	if len(h) < 8 {
		return string(h)
	}
	return string(h[:8])
}

// Tier 表示对象当前所在的存储层
type Tier string

const (
	TierFast    Tier = "fast"    // 本地 MinIO / 磁盘，低延迟，签名 URL
	TierDurable Tier = "durable" // 云端 S3，稳定 URL
)

func (t Tier) String() string { return string(t) }

func (t Tier) IsValid() bool { return t == TierFast || t == TierDurable }
