package meta

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"hybridvault/pkg/types"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// setupTestRepo 构建隔离的测试环境
func setupTestRepo(t *testing.T) *Repository {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(Models()...))
	t.Cleanup(func() { _ = metaDB.Close() })

	return NewRepository(metaDB)
}

// mockHash 生成合法的测试用 Hash
func mockHash(input string) types.ContentHash {
	sum := sha256.Sum256([]byte(input))
	return types.ContentHash(hex.EncodeToString(sum[:]))
}

// newFastRecord 构造一条 fast 层记录 (未落库)
func newFastRecord(owner types.OwnerID, content string) *ObjectRecord {
	rec := &ObjectRecord{
		OwnerID:          owner,
		Filename:         "uuid-" + content + ".txt",
		OriginalFilename: content + ".txt",
		Size:             int64(len(content)),
		ContentType:      "text/plain",
		Tier:             types.TierFast,
		ObjectKey:        fmt.Sprintf("owner-%d/uuid-%s.txt", owner, content),
		AccessURL:        "http://minio/signed",
	}
	rec.SetHash(mockHash(content))
	return rec
}

// mustCreate 写入记录，失败则终止
func mustCreate(t *testing.T, repo *Repository, rec *ObjectRecord, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), rec), msgAndArgs...)
}

// fixedClock 让 now() 可控
func fixedClock(repo *Repository, ts time.Time) {
	repo.now = func() time.Time { return ts }
}
