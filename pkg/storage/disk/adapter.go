package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hybridvault/pkg/storage"
	"hybridvault/pkg/types"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultURLTTL = 24 * time.Hour

var ErrInvalidLocator = errors.New("invalid or expired locator")

// Adapter 是基于本地目录的 FastTier 实现
// Locate 签发带过期时间的 JWT，作为 "签名 URL" 的 token
type Adapter struct {
	rootPath   string // 比如: /var/lib/hybridvault/objects
	baseURL    string // 文件服务对外地址，比如 http://files.local:8080/objects
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// Config 用于初始化 Adapter
type Config struct {
	Root       string
	BaseURL    string
	SigningKey string
	URLTTL     time.Duration
}

type locatorClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("disk tier: signing key is required")
	}
	// 确保根目录存在
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &Adapter{
		rootPath:   cfg.Root,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		signingKey: []byte(cfg.SigningKey),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

func (s *Adapter) Kind() types.Tier { return types.TierFast }

// layout 返回 Key 对应的物理路径
// Key 形如 "owner-1/uuid-name"，直接映射为子目录
func (s *Adapter) layout(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal object key %q", key)
	}
	return filepath.Join(s.rootPath, clean), nil
}

func (s *Adapter) Put(ctx context.Context, key string, data []byte, contentType string) error {
	targetPath, err := s.layout(key)
	if err != nil {
		return storage.Permanent("put", key, err)
	}

	// 1. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return storage.Permanent("put", key, err)
	}

	// 2. 原子写入 (Atomic Write)
	// 先写到临时文件，然后 Rename。要么文件不存在，要么文件是完整的。
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return storage.Transient("put", key, err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return storage.Transient("put", key, err)
	}
	if err := tempFile.Close(); err != nil {
		return storage.Transient("put", key, err)
	}

	// 3. 移动到最终位置
	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return storage.Transient("put", key, err)
	}
	return nil
}

func (s *Adapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	targetPath, err := s.layout(key)
	if err != nil {
		return nil, storage.Permanent("get", key, err)
	}

	f, err := os.Open(targetPath)
	if os.IsNotExist(err) {
		return nil, storage.Permanent("get", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.Transient("get", key, err)
	}
	return f, nil
}

func (s *Adapter) Delete(ctx context.Context, key string) error {
	targetPath, err := s.layout(key)
	if err != nil {
		return storage.Permanent("delete", key, err)
	}
	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		return storage.Transient("delete", key, err)
	}
	return nil
}

// Locate 生成 "{baseURL}/{key}?token={jwt}"，默认 24h 过期
func (s *Adapter) Locate(ctx context.Context, key string) (string, error) {
	now := s.now()
	claims := locatorClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", storage.Permanent("locate", key, err)
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", storage.Permanent("locate", key, err)
	}
	u = u.JoinPath(key)
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// VerifyToken 校验 Locate 签发的 token，返回其授权的 Key
// 供前置文件服务使用
func (s *Adapter) VerifyToken(token string) (string, error) {
	var claims locatorClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	return claims.Key, nil
}
