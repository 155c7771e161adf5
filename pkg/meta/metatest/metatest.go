// Package metatest builds isolated in-memory record stores for tests.
package metatest

import (
	"fmt"
	"strings"
	"testing"

	"hybridvault/pkg/meta"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 构建隔离的 sqlite 内存库，库名取自测试名
func NewDB(t testing.TB) *meta.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// 单连接：内存库在连接全部关闭后消失，同时避免并发写锁冲突
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(meta.Models()...))
	t.Cleanup(func() { _ = metaDB.Close() })
	return metaDB
}

// NewRepository 等价于 meta.NewRepository(NewDB(t))
func NewRepository(t testing.TB) *meta.Repository {
	t.Helper()
	return meta.NewRepository(NewDB(t))
}
