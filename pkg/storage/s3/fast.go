package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"hybridvault/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPresignTTL 签名 URL 默认有效期
const DefaultPresignTTL = 24 * time.Hour

// FastAdapter 是基于 MinIO (S3 协议) 的 FastTier
// 低延迟、单次尝试：失败立即以 TransportError 返回
type FastAdapter struct {
	client    API
	presigner Presigner
	bucket    string
	ttl       time.Duration
}

// NewFastAdapter 连接 MinIO 并确保 Bucket 存在
func NewFastAdapter(ctx context.Context, cfg Config, ttl time.Duration) (*FastAdapter, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}
	return NewFastAdapterWithClient(client, s3.NewPresignClient(client), cfg.Bucket, ttl), nil
}

// NewFastAdapterWithClient 允许注入现有客户端 (测试 / 复用连接)
func NewFastAdapterWithClient(client API, presigner Presigner, bucket string, ttl time.Duration) *FastAdapter {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &FastAdapter{client: client, presigner: presigner, bucket: bucket, ttl: ttl}
}

func (s *FastAdapter) Kind() types.Tier { return types.TierFast }

func (s *FastAdapter) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return classify("put", key, err)
	}
	return nil
}

func (s *FastAdapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("get", key, err)
	}
	return resp.Body, nil
}

func (s *FastAdapter) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify("delete", key, err)
	}
	return nil
}

// Locate 生成预签名 GET URL
func (s *FastAdapter) Locate(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", classify("locate", key, fmt.Errorf("presign failed: %w", err))
	}
	return req.URL, nil
}
