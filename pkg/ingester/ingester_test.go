package ingester

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"hybridvault/pkg/core"
	"hybridvault/pkg/ignore"
	"hybridvault/pkg/index"
	"hybridvault/pkg/meta"
	"hybridvault/pkg/meta/metatest"
	"hybridvault/pkg/metrics"
	"hybridvault/pkg/storage"
	"hybridvault/pkg/storage/memory"
	"hybridvault/pkg/types"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo    *meta.Repository
	fast    *memory.Adapter
	metrics *metrics.Metrics
	ing     *Ingester
}

func setup(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		repo:    metatest.NewRepository(t),
		fast:    memory.NewAdapter(types.TierFast),
		metrics: metrics.New(),
	}
	opts.Metrics = f.metrics
	opts.Logger = zerolog.Nop()
	f.ing = NewIngester(f.fast, index.New(f.repo, nil), opts)
	return f
}

func upload(owner types.OwnerID, name, content string) UploadRequest {
	return UploadRequest{Owner: owner, Filename: name, Body: strings.NewReader(content)}
}

func TestIngestFlow(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	res, err := f.ing.IngestFile(ctx, UploadRequest{
		Owner:       7,
		Filename:    "notes.txt",
		ContentType: "text/plain",
		Body:        strings.NewReader("abc"),
	})
	require.NoError(t, err)
	require.False(t, res.Duplicate)

	rec := res.Record
	assert.Equal(t, types.TierFast, rec.Tier)
	assert.Equal(t, core.HashContent([]byte("abc")), rec.Hash())
	assert.Equal(t, int64(3), rec.Size)
	assert.Equal(t, "notes.txt", rec.OriginalFilename)
	assert.Nil(t, rec.SyncedAt)

	// Key 形如 owner-7/{uuid}-notes.txt
	owner, name, err := core.ParseObjectKey(rec.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, types.OwnerID(7), owner)
	assert.Equal(t, rec.Filename, name)
	assert.True(t, strings.HasSuffix(name, "-notes.txt"))

	// 对象确实写入了 FastTier
	data, err := storage.ReadAll(ctx, f.fast, rec.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
	assert.Equal(t, "text/plain", f.fast.ContentType(rec.ObjectKey))
	assert.Equal(t, "mem://fast/"+rec.ObjectKey, rec.AccessURL)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Uploads.WithLabelValues(metrics.UploadStored)))
}

func TestIngest_DuplicateShortCircuits(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	first, err := f.ing.IngestFile(ctx, upload(1, "a.txt", "same bytes"))
	require.NoError(t, err)

	// 同一用户、不同文件名、相同内容
	second, err := f.ing.IngestFile(ctx, upload(1, "b.txt", "same bytes"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Record.ID, second.Record.ID)

	// 没有第二次写入，也没有第二条记录
	assert.Equal(t, 1, f.fast.Puts)
	recs, err := f.repo.ListByOwner(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	// 其他用户上传相同内容：独立存储
	other, err := f.ing.IngestFile(ctx, upload(2, "a.txt", "same bytes"))
	require.NoError(t, err)
	assert.False(t, other.Duplicate)
	assert.Equal(t, 2, f.fast.Puts)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Uploads.WithLabelValues(metrics.UploadDuplicate)))
}

func TestIngest_Validation(t *testing.T) {
	f := setup(t, Options{MaxSize: 8, Deny: ignore.NewMatcher([]string{"*.exe"})})
	ctx := context.Background()

	tests := []struct {
		name    string
		req     UploadRequest
		wantErr error
	}{
		{"empty", upload(1, "a.txt", ""), ErrEmptyFile},
		{"too large", upload(1, "a.txt", "123456789"), ErrFileTooLarge},
		{"no filename", upload(1, "  ", "abc"), ErrMissingFilename},
		{"denied", upload(1, "tool.exe", "abc"), ErrFilenameDenied},
		{"junk file", upload(1, ".DS_Store", "abc"), ErrFilenameDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ing.IngestFile(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// 恰好等于上限是允许的
	_, err := f.ing.IngestFile(ctx, upload(1, "a.txt", "12345678"))
	assert.NoError(t, err)

	assert.Equal(t, 1, f.fast.Len(), "rejected uploads never reach storage")
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(f.metrics.Uploads.WithLabelValues(metrics.UploadFailed)))
}

func TestIngest_DefaultContentType(t *testing.T) {
	f := setup(t, Options{})

	res, err := f.ing.IngestFile(context.Background(), upload(1, "blob", "xyz"))
	require.NoError(t, err)
	assert.Equal(t, DefaultContentType, res.Record.ContentType)
	assert.Equal(t, DefaultContentType, f.fast.ContentType(res.Record.ObjectKey))
}

func TestIngest_PathInFilenameIsStripped(t *testing.T) {
	f := setup(t, Options{})

	res, err := f.ing.IngestFile(context.Background(), upload(3, "../../etc/passwd", "x"))
	require.NoError(t, err)
	_, name, err := core.ParseObjectKey(res.Record.ObjectKey)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, "-passwd"))
}

func TestIngest_StorageFailure(t *testing.T) {
	f := setup(t, Options{})
	f.fast.FailPut = func(string) error {
		return storage.Transient("put", "k", errors.New("minio down"))
	}

	_, err := f.ing.IngestFile(context.Background(), upload(1, "a.txt", "abc"))
	require.Error(t, err)
	assert.True(t, storage.IsTransient(err))

	// 没有记录
	recs, err := f.repo.ListByOwner(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestIngest_LostRaceReusesWinner(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	// 在本次 Put 期间，另一个请求抢先登记了同一内容
	var winner *meta.ObjectRecord
	f.fast.FailPut = func(string) error {
		winner = &meta.ObjectRecord{
			OwnerID:   1,
			Filename:  "winner",
			Tier:      types.TierFast,
			ObjectKey: "owner-1/winner",
		}
		winner.SetHash(core.HashContent([]byte("abc")))
		require.NoError(t, f.repo.Create(ctx, winner))
		return nil
	}

	res, err := f.ing.IngestFile(ctx, upload(1, "a.txt", "abc"))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, winner.ID, res.Record.ID)

	// 本次写入的孤儿对象已清理
	assert.Equal(t, 0, f.fast.Len())
	assert.Equal(t, 1, f.fast.Deletes)
}

func TestIngest_LargeBody(t *testing.T) {
	f := setup(t, Options{})
	content := bytes.Repeat([]byte("hybridvault "), 100_000)

	res, err := f.ing.IngestFile(context.Background(), UploadRequest{
		Owner: 1, Filename: "big.bin", Body: bytes.NewReader(content),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), res.Record.Size)
	assert.Equal(t, core.HashContent(content), res.Record.Hash())
}
