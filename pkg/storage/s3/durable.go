package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"hybridvault/pkg/storage"
	"hybridvault/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 3
	defaultBackoff     = 200 * time.Millisecond
)

// DurableConfig DurableTier 的附加配置
type DurableConfig struct {
	Config
	MaxAttempts   int    // Put 的最大尝试次数 (含第一次)
	PublicBaseURL string // 可选：CDN 或自定义域名，覆盖默认的 S3 直链
}

// DurableAdapter 是基于 AWS S3 的 DurableTier
//   - Put 在可重试错误上最多尝试 MaxAttempts 次
//   - Locate 返回由 bucket/region/key 决定的稳定 URL，不签名
type DurableAdapter struct {
	client        API
	bucket        string
	region        string
	publicBaseURL string
	maxAttempts   int
	backoff       time.Duration
	logger        zerolog.Logger
}

// NewDurableAdapter 初始化 AWS S3 客户端
// 云端 Bucket 由运维预先创建，这里不自动创建
func NewDurableAdapter(ctx context.Context, cfg DurableConfig, logger zerolog.Logger) (*DurableAdapter, error) {
	client, err := newClient(ctx, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("durable tier: %w", err)
	}
	a := NewDurableAdapterWithClient(client, cfg)
	a.logger = logger.With().Str("component", "durable-tier").Logger()
	return a, nil
}

// NewDurableAdapterWithClient 允许注入现有客户端
func NewDurableAdapterWithClient(client API, cfg DurableConfig) *DurableAdapter {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return &DurableAdapter{
		client:        client,
		bucket:        cfg.Bucket,
		region:        region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxAttempts:   attempts,
		backoff:       defaultBackoff,
		logger:        zerolog.Nop(),
	}
}

func (s *DurableAdapter) Kind() types.Tier { return types.TierDurable }

// Put 上传对象，可重试错误按指数退避重试，次数有上限
func (s *DurableAdapter) Put(ctx context.Context, key string, data []byte, contentType string) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data), // 每次重试都要一个新的 Reader
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentType),
		})
		if err == nil {
			return nil
		}

		lastErr = classify("put", key, err)
		if !storage.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == s.maxAttempts {
			break
		}

		s.logger.Warn().Err(err).
			Str("object_key", key).
			Int("attempt", attempt).
			Int("max_attempts", s.maxAttempts).
			Msg("S3 upload attempt failed, retrying")

		if err := sleepCtx(ctx, s.backoff<<(attempt-1)); err != nil {
			return storage.Permanent("put", key, err)
		}
	}
	return fmt.Errorf("s3 put gave up after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *DurableAdapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("get", key, err)
	}
	return resp.Body, nil
}

// Delete 失败只返回错误，不影响调用方删除记录
func (s *DurableAdapter) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify("delete", key, err)
	}
	return nil
}

// Locate: https://{bucket}.s3.{region}.amazonaws.com/{key}
func (s *DurableAdapter) Locate(ctx context.Context, key string) (string, error) {
	if s.publicBaseURL != "" {
		base, err := url.Parse(s.publicBaseURL)
		if err != nil {
			return "", storage.Permanent("locate", key, err)
		}
		return base.JoinPath(key).String(), nil
	}
	u := url.URL{
		Scheme: "https",
		Host:   fmt.Sprintf("%s.s3.%s.amazonaws.com", s.bucket, s.region),
		Path:   "/" + key,
	}
	return u.String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
