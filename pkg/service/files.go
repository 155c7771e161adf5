package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"hybridvault/pkg/app"
	"hybridvault/pkg/ingester"
	"hybridvault/pkg/meta"
	"hybridvault/pkg/types"

	"github.com/rs/zerolog"
)

var ErrForbidden = errors.New("file belongs to another owner")

// maxAttempts 是 Locate / Delete 遇到并发迁移时的重读次数上限
const maxAttempts = 3

// FileService 是面向 API 层的文件操作
// 每个方法都带 owner，越权访问返回 ErrForbidden
type FileService struct {
	app    *app.App
	logger zerolog.Logger
}

func NewFileService(application *app.App) *FileService {
	return &FileService{
		app:    application,
		logger: application.Logger.With().Str("component", "files").Logger(),
	}
}

// DeleteResult 删除结果
// StorageErr 非空表示存储对象删除失败 (记录已删除，对象成为孤儿)
type DeleteResult struct {
	Record     *meta.ObjectRecord
	StorageErr error
}

// Upload 上传文件 (去重命中时 Duplicate = true)
func (s *FileService) Upload(ctx context.Context, req ingester.UploadRequest) (*ingester.UploadResult, error) {
	return s.app.Ingester.IngestFile(ctx, req)
}

// Get 读取记录并校验归属
func (s *FileService) Get(ctx context.Context, owner types.OwnerID, id uint) (*meta.ObjectRecord, error) {
	rec, err := s.app.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != owner {
		return nil, ErrForbidden
	}
	return rec, nil
}

// List 列出文件，最新的在前
func (s *FileService) List(ctx context.Context, owner types.OwnerID, limit int) ([]meta.ObjectRecord, error) {
	return s.app.Repository.ListByOwner(ctx, owner, limit)
}

// Open 从记录当前所在的层读取内容，调用者负责 Close
func (s *FileService) Open(ctx context.Context, owner types.OwnerID, id uint) (io.ReadCloser, *meta.ObjectRecord, error) {
	rec, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	tier, err := s.app.Tiers.For(rec.Tier)
	if err != nil {
		return nil, nil, err
	}
	rc, err := tier.Get(ctx, rec.ObjectKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s object: %w", rec.Tier, err)
	}
	return rc, rec, nil
}

// Locate 返回访问地址
// FastTier 的签名 URL 会过期，每次重新签发并写回记录；DurableTier 直接返回稳定地址
// 签发期间记录被同步到 durable 时，重新读取记录，返回 durable 地址
func (s *FileService) Locate(ctx context.Context, owner types.OwnerID, id uint) (string, error) {
	for attempt := 1; ; attempt++ {
		rec, err := s.Get(ctx, owner, id)
		if err != nil {
			return "", err
		}
		if rec.Tier == types.TierDurable && rec.AccessURL != "" {
			return rec.AccessURL, nil
		}

		tier, err := s.app.Tiers.For(rec.Tier)
		if err != nil {
			return "", err
		}
		url, err := tier.Locate(ctx, rec.ObjectKey)
		if err != nil {
			return "", fmt.Errorf("failed to locate object: %w", err)
		}

		// 只在记录仍处于签发时的层才写回
		err = s.app.Repository.UpdateAccessURL(ctx, rec.ID, rec.Tier, url)
		switch {
		case err == nil:
			return url, nil
		case errors.Is(err, meta.ErrConcurrentUpdate):
			if attempt >= maxAttempts {
				return "", fmt.Errorf("failed to locate file %d: %w", id, err)
			}
			s.logger.Debug().Uint("record_id", rec.ID).Msg("record moved while locating, retrying")
		default:
			// 地址本身可用，写回失败只影响下次
			s.logger.Warn().Err(err).Uint("record_id", rec.ID).Msg("failed to persist refreshed locator")
			return url, nil
		}
	}
}

// Delete 删除存储对象和记录
// 存储删除是尽力而为：失败时记录照样删除，错误通过 DeleteResult.StorageErr 报告
// 记录按读到的 version 删除；期间被同步提交时重新读取，删除新层上的对象
func (s *FileService) Delete(ctx context.Context, owner types.OwnerID, id uint) (*DeleteResult, error) {
	for attempt := 1; ; attempt++ {
		rec, err := s.Get(ctx, owner, id)
		if err != nil {
			return nil, err
		}
		res := &DeleteResult{Record: rec}

		log := s.logger.With().
			Uint("record_id", rec.ID).
			Int64("owner_id", int64(rec.OwnerID)).
			Str("object_key", rec.ObjectKey).
			Logger()

		// 1. 删除存储对象
		tier, err := s.app.Tiers.For(rec.Tier)
		if err == nil {
			err = tier.Delete(ctx, rec.ObjectKey)
		}
		if err != nil {
			res.StorageErr = err
			log.Warn().Err(err).Str("tier", rec.Tier.String()).Msg("failed to delete stored object")
		}

		// 2. 删除记录 (CAS)
		err = s.app.Repository.Delete(ctx, rec.ID, rec.Version)
		if errors.Is(err, meta.ErrConcurrentUpdate) && attempt < maxAttempts {
			log.Info().Int64("version", rec.Version).Msg("record changed during delete, retrying")
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to delete record: %w", err)
		}
		s.app.Index.Forget(ctx, rec)

		log.Info().Msg("file deleted")
		return res, nil
	}
}
