package transfer

import (
	"context"
	"errors"
	"testing"

	"hybridvault/pkg/core"
	"hybridvault/pkg/meta"
	"hybridvault/pkg/meta/metatest"
	"hybridvault/pkg/storage"
	"hybridvault/pkg/storage/memory"
	"hybridvault/pkg/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo    *meta.Repository
	fast    *memory.Adapter
	durable *memory.Adapter
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		repo:    metatest.NewRepository(t),
		fast:    memory.NewAdapter(types.TierFast),
		durable: memory.NewAdapter(types.TierDurable),
	}
}

func (f *fixture) pipeline(cleanup bool) *Pipeline {
	return NewPipeline(
		storage.Tiers{Fast: f.fast, Durable: f.durable},
		f.repo,
		Options{Cleanup: cleanup, Logger: zerolog.Nop()},
	)
}

// seed 写入 FastTier 对象并登记记录
func (f *fixture) seed(t *testing.T, owner types.OwnerID, content string) *meta.ObjectRecord {
	t.Helper()
	ctx := context.Background()
	key := core.NewObjectKey(owner, content+".txt")
	require.NoError(t, f.fast.Put(ctx, key, []byte(content), "text/plain"))

	rec := &meta.ObjectRecord{
		OwnerID:     owner,
		Filename:    core.UniqueName(key),
		Size:        int64(len(content)),
		ContentType: "text/plain",
		Tier:        types.TierFast,
		ObjectKey:   key,
		AccessURL:   "mem://fast/" + key,
	}
	rec.SetHash(core.HashContent([]byte(content)))
	require.NoError(t, f.repo.Create(ctx, rec))
	return rec
}

func (f *fixture) reload(t *testing.T, id uint) *meta.ObjectRecord {
	t.Helper()
	rec, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestTransfer_HappyPath(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.seed(t, 1, "abc")

	out := f.pipeline(false).Transfer(ctx, rec)
	require.NoError(t, out.Err)
	assert.Equal(t, Committed, out.State)
	assert.Equal(t, []State{Pending, Fetching, Uploading, Committed}, out.Transitions)

	// 命名连续：owner 前缀 + 原唯一名
	assert.Equal(t, rec.ObjectKey, out.DurableKey)
	data, err := storage.ReadAll(ctx, f.durable, out.DurableKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
	assert.Equal(t, "text/plain", f.durable.ContentType(out.DurableKey))

	got := f.reload(t, rec.ID)
	assert.Equal(t, types.TierDurable, got.Tier)
	assert.Equal(t, out.DurableKey, got.ObjectKey)
	assert.Equal(t, out.Locator, got.AccessURL)
	assert.NotNil(t, got.SyncedAt)

	// 默认不清理 FastTier
	assert.True(t, f.fast.Has(rec.ObjectKey))
}

func TestTransfer_Cleanup(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, 1, "abc")

	out := f.pipeline(true).Transfer(context.Background(), rec)
	require.Equal(t, Committed, out.State)
	assert.False(t, f.fast.Has(rec.ObjectKey))
	assert.NoError(t, out.CleanupErr)
}

func TestTransfer_CleanupFailureDoesNotFailItem(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, 1, "abc")
	f.fast.FailDelete = func(string) error { return errors.New("minio unavailable") }

	out := f.pipeline(true).Transfer(context.Background(), rec)
	assert.Equal(t, Committed, out.State)
	assert.NoError(t, out.Err)
	assert.Error(t, out.CleanupErr)
	assert.Equal(t, types.TierDurable, f.reload(t, rec.ID).Tier, "commit is not reverted")
}

func TestTransfer_FetchFailure(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, 1, "abc")
	f.fast.FailGet = func(string) error {
		return storage.Transient("get", "k", errors.New("connection refused"))
	}

	out := f.pipeline(true).Transfer(context.Background(), rec)
	assert.Equal(t, Failed, out.State)
	assert.Equal(t, Fetching, out.FailedAt)
	assert.Equal(t, []State{Pending, Fetching, Failed}, out.Transitions)

	var se *StageError
	require.ErrorAs(t, out.Err, &se)
	assert.Equal(t, Fetching, se.Stage)
	assert.True(t, storage.IsTransient(out.Err))

	// 记录与源对象都未改变，DurableTier 没有写入
	assert.Equal(t, types.TierFast, f.reload(t, rec.ID).Tier)
	assert.True(t, f.fast.Has(rec.ObjectKey))
	assert.Equal(t, 0, f.durable.Puts)
}

func TestTransfer_MissingSourceIsPermanent(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, 1, "abc")
	require.NoError(t, f.fast.Delete(context.Background(), rec.ObjectKey))

	out := f.pipeline(false).Transfer(context.Background(), rec)
	assert.Equal(t, Failed, out.State)
	assert.ErrorIs(t, out.Err, storage.ErrNotFound)
	assert.True(t, storage.IsPermanent(out.Err))
}

func TestTransfer_ChecksumMismatch(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, 1, "abc")
	// FastTier 上的内容被篡改
	require.NoError(t, f.fast.Put(context.Background(), rec.ObjectKey, []byte("abd"), "text/plain"))

	out := f.pipeline(false).Transfer(context.Background(), rec)
	assert.Equal(t, Fetching, out.FailedAt)
	assert.ErrorIs(t, out.Err, ErrChecksumMismatch)
	assert.Equal(t, 0, f.durable.Puts)
}

func TestTransfer_UploadFailureKeepsSource(t *testing.T) {
	f := setup(t)
	rec := f.seed(t, 1, "abc")
	f.durable.FailPut = func(string) error {
		return storage.Transient("put", "k", errors.New("s3 put gave up after 3 attempts"))
	}

	out := f.pipeline(true).Transfer(context.Background(), rec)
	assert.Equal(t, Failed, out.State)
	assert.Equal(t, Uploading, out.FailedAt)
	assert.Equal(t, []State{Pending, Fetching, Uploading, Failed}, out.Transitions)

	// 系统永远不会出现零副本
	assert.True(t, f.fast.Has(rec.ObjectKey))
	got := f.reload(t, rec.ID)
	assert.Equal(t, types.TierFast, got.Tier)
	assert.Nil(t, got.SyncedAt)
}

func TestTransfer_CommitPersistenceFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.seed(t, 1, "abc")

	// 迁移开始后记录被并发修改 (版本号已变)
	stale := *rec
	stale.Version = rec.Version + 10

	out := f.pipeline(true).Transfer(ctx, &stale)
	assert.Equal(t, Failed, out.State)
	assert.Equal(t, Committed, out.FailedAt)
	assert.ErrorIs(t, out.Err, ErrCommitPersistence)
	assert.ErrorIs(t, out.Err, meta.ErrConcurrentUpdate)

	// 两层都有副本，源对象没有被清理
	assert.True(t, f.fast.Has(rec.ObjectKey))
	assert.True(t, f.durable.Has(out.DurableKey))
	assert.Equal(t, types.TierFast, f.reload(t, rec.ID).Tier)
}

func TestTransfer_RecordDeletedMidFlight(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.seed(t, 1, "abc")
	require.NoError(t, f.repo.Delete(ctx, rec.ID, rec.Version))

	out := f.pipeline(false).Transfer(ctx, rec)
	assert.ErrorIs(t, out.Err, ErrCommitPersistence)
}

func TestTransfer_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec := f.seed(t, 1, "abc")
	p := f.pipeline(false)

	// 第一次在上传阶段失败
	f.durable.FailPut = func(string) error { return storage.Transient("put", "k", errors.New("timeout")) }
	require.Equal(t, Failed, p.Transfer(ctx, rec).State)

	// 第二次从 Pending 重新执行
	f.durable.FailPut = nil
	out := p.Transfer(ctx, f.reload(t, rec.ID))
	require.Equal(t, Committed, out.State)

	// 已迁移的记录不再合格
	out = p.Transfer(ctx, f.reload(t, rec.ID))
	assert.Equal(t, Failed, out.State)
	assert.ErrorIs(t, out.Err, ErrNotEligible)
	assert.Equal(t, 1, f.durable.Len())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, Failed.Terminal())
	assert.False(t, Uploading.Terminal())
}
