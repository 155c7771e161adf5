package core

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"hybridvault/pkg/types"

	"github.com/google/uuid"
)

var ErrInvalidObjectKey = errors.New("invalid object key")

const ownerPrefix = "owner-"

// OwnerNamespace 返回所有者的命名空间前缀: "owner-{id}"
func OwnerNamespace(owner types.OwnerID) string {
	return ownerPrefix + owner.String()
}

// NewUniqueName 生成 "{uuid}-{originalFilename}"
// 只保留原始文件名的最后一段，防止 "../" 之类的路径穿越
func NewUniqueName(originalFilename string) string {
	base := sanitizeFilename(originalFilename)
	return uuid.NewString() + "-" + base
}

// ObjectKey 拼接对象 Key: "owner-{id}/{uniqueName}"
// 两个存储层使用同一个 Key，区别只在 Bucket
func ObjectKey(owner types.OwnerID, uniqueName string) string {
	return OwnerNamespace(owner) + "/" + uniqueName
}

// NewObjectKey = ObjectKey(owner, NewUniqueName(name))
func NewObjectKey(owner types.OwnerID, originalFilename string) string {
	return ObjectKey(owner, NewUniqueName(originalFilename))
}

// UniqueName 从 Key 中提取最后一段 (跨层迁移时保持命名连续)
func UniqueName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// ParseObjectKey 解析 "owner-{id}/{uniqueName}"
func ParseObjectKey(key string) (types.OwnerID, string, error) {
	ns, name, ok := strings.Cut(key, "/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidObjectKey, key)
	}
	idStr, ok := strings.CutPrefix(ns, ownerPrefix)
	if !ok {
		return 0, "", fmt.Errorf("%w: missing owner prefix in %q", ErrInvalidObjectKey, key)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: bad owner id in %q", ErrInvalidObjectKey, key)
	}
	return types.OwnerID(id), name, nil
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "file"
	}
	return base
}
