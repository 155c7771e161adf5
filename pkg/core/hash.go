package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"hybridvault/pkg/types"
)

// HashContent 计算原始数据的 Content Hash (SHA-256, 小写 Hex)
// 相同字节永远得到相同 Hash，这是去重的前提
func HashContent(data []byte) types.ContentHash {
	sum := sha256.Sum256(data)
	return types.ContentHash(hex.EncodeToString(sum[:]))
}

// HashReader 流式计算 Hash，同时返回读取的字节数
func HashReader(r io.Reader) (types.ContentHash, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("failed to hash content: %w", err)
	}
	return types.ContentHash(hex.EncodeToString(h.Sum(nil))), n, nil
}
