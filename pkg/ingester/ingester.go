package ingester

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"hybridvault/pkg/core"
	"hybridvault/pkg/ignore"
	"hybridvault/pkg/index"
	"hybridvault/pkg/meta"
	"hybridvault/pkg/metrics"
	"hybridvault/pkg/storage"
	"hybridvault/pkg/types"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxSize     = 100 << 20 // 100MB
	DefaultContentType = "application/octet-stream"
)

var (
	ErrMissingFilename = errors.New("no file provided")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds maximum upload size")
	ErrFilenameDenied  = errors.New("filename rejected by deny rules")
)

// Options 控制上传校验
type Options struct {
	MaxSize int64           // <= 0 时使用 DefaultMaxSize
	Deny    *ignore.Matcher // 可为 nil
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Ingester 负责上传路径：校验 -> 哈希 -> 去重 -> 写入 FastTier -> 登记
// 新对象总是先落在 FastTier，由同步任务迁移到 DurableTier
type Ingester struct {
	fast    storage.Tier
	index   *index.Index
	maxSize int64
	deny    *ignore.Matcher
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// UploadRequest 一次上传
type UploadRequest struct {
	Owner       types.OwnerID
	Filename    string
	ContentType string
	Body        io.Reader
}

// UploadResult 上传结果
// Duplicate 为 true 时 Record 是已存在的记录，本次没有写入任何存储
type UploadResult struct {
	Record    *meta.ObjectRecord
	Duplicate bool
}

func NewIngester(fast storage.Tier, idx *index.Index, opts Options) *Ingester {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Ingester{
		fast:    fast,
		index:   idx,
		maxSize: maxSize,
		deny:    opts.Deny,
		metrics: opts.Metrics,
		logger:  opts.Logger.With().Str("component", "ingester").Logger(),
	}
}

// IngestFile 读取上传流，去重后写入 FastTier 并登记记录
func (ing *Ingester) IngestFile(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	res, err := ing.ingest(ctx, req)
	switch {
	case err != nil:
		ing.metrics.ObserveUpload(metrics.UploadFailed)
	case res.Duplicate:
		ing.metrics.ObserveUpload(metrics.UploadDuplicate)
	default:
		ing.metrics.ObserveUpload(metrics.UploadStored)
	}
	return res, err
}

func (ing *Ingester) ingest(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	// 1. 校验文件名
	if strings.TrimSpace(req.Filename) == "" {
		return nil, ErrMissingFilename
	}
	if ing.deny.Matches(req.Filename) {
		return nil, fmt.Errorf("%w: %s", ErrFilenameDenied, req.Filename)
	}

	// 2. 读取并计算 Hash
	// 多读 1 字节用于判断是否超限
	var buf bytes.Buffer
	hash, n, err := core.HashReader(io.TeeReader(io.LimitReader(req.Body, ing.maxSize+1), &buf))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyFile
	}
	if n > ing.maxSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, ing.maxSize)
	}

	log := ing.logger.With().
		Int64("owner_id", int64(req.Owner)).
		Str("hash", hash.Short()).
		Logger()

	// 3. 去重检查：命中则直接返回已有记录
	existing, err := ing.index.Lookup(ctx, req.Owner, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info().Uint("record_id", existing.ID).Msg("duplicate content, skipping upload")
		return &UploadResult{Record: existing, Duplicate: true}, nil
	}

	// 4. 写入 FastTier
	contentType := req.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	uniqueName := core.NewUniqueName(req.Filename)
	key := core.ObjectKey(req.Owner, uniqueName)

	if err := ing.fast.Put(ctx, key, buf.Bytes(), contentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	url, err := ing.fast.Locate(ctx, key)
	if err != nil {
		ing.discard(ctx, key)
		return nil, fmt.Errorf("failed to sign access url: %w", err)
	}

	// 5. 登记记录
	rec := &meta.ObjectRecord{
		OwnerID:          req.Owner,
		Filename:         uniqueName,
		OriginalFilename: req.Filename,
		Size:             n,
		ContentType:      contentType,
		Tier:             types.TierFast,
		ObjectKey:        key,
		AccessURL:        url,
	}
	rec.SetHash(hash)

	if err := ing.index.Register(ctx, rec); err != nil {
		// 对象已写入但记录失败：清理孤儿对象
		ing.discard(ctx, key)

		if errors.Is(err, meta.ErrDuplicateContent) {
			// 并发上传同一内容，后到者复用先到者的记录
			winner, lerr := ing.index.Lookup(ctx, req.Owner, hash)
			if lerr == nil && winner != nil {
				log.Info().Uint("record_id", winner.ID).Msg("lost upload race, reusing record")
				return &UploadResult{Record: winner, Duplicate: true}, nil
			}
		}
		return nil, fmt.Errorf("failed to register upload: %w", err)
	}

	log.Info().
		Uint("record_id", rec.ID).
		Str("object_key", key).
		Int64("size", n).
		Msg("stored upload on fast tier")
	return &UploadResult{Record: rec}, nil
}

// discard 尽力删除对象，失败只记日志
func (ing *Ingester) discard(ctx context.Context, key string) {
	if err := ing.fast.Delete(ctx, key); err != nil {
		ing.logger.Warn().Err(err).Str("object_key", key).Msg("failed to remove orphaned object")
	}
}
