package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hybridvault/pkg/index"
	"hybridvault/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisIndexCache 缓存 (owner, hash) -> record id 的映射
// 为内容寻址索引挡掉重复上传时的数据库查询
// 只缓存指针，不缓存记录本身：记录的 tier / locator 会变
type RedisIndexCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

// cacheEntry 是 Redis 中存储的值，使用 CBOR 编码 (比 JSON 紧凑)
type cacheEntry struct {
	RecordID uint  `cbor:"1,keyasint"`
	Size     int64 `cbor:"2,keyasint,omitempty"`
}

// NewRedisIndexCache 连接 Redis 并做一次 Fail-fast 检查
func NewRedisIndexCache(cfg Config, logger zerolog.Logger) (*RedisIndexCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newWithClient(client, cfg.TTL, logger), nil
}

func newWithClient(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisIndexCache {
	return &RedisIndexCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "index-cache").Logger(),
	}
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (c *RedisIndexCache) cacheKey(owner types.OwnerID, hash types.ContentHash) string {
	return fmt.Sprintf("hv:idx:%d:%s", owner, hash)
}

// Get 查询缓存
// Redis 故障时降级为 miss，由调用方回源数据库
func (c *RedisIndexCache) Get(ctx context.Context, owner types.OwnerID, hash types.ContentHash) (index.CacheEntry, bool) {
	raw, err := c.client.Get(ctx, c.cacheKey(owner, hash)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("redis get failed, falling back to store")
		}
		return index.CacheEntry{}, false
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		// 脏数据直接丢弃
		c.Delete(ctx, owner, hash)
		return index.CacheEntry{}, false
	}
	return entry, true
}

// Set 写入缓存，失败只记日志
func (c *RedisIndexCache) Set(ctx context.Context, owner types.OwnerID, hash types.ContentHash, entry index.CacheEntry) {
	raw, err := encodeEntry(entry)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.cacheKey(owner, hash), raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("record_id", entry.RecordID).Msg("redis set failed")
	}
}

// Delete 删除缓存项
func (c *RedisIndexCache) Delete(ctx context.Context, owner types.OwnerID, hash types.ContentHash) {
	if err := c.client.Del(ctx, c.cacheKey(owner, hash)).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis del failed")
	}
}

func encodeEntry(e index.CacheEntry) ([]byte, error) {
	return cbor.Marshal(cacheEntry{RecordID: e.RecordID, Size: e.Size})
}

func decodeEntry(raw []byte) (index.CacheEntry, error) {
	var entry cacheEntry
	if err := cbor.Unmarshal(raw, &entry); err != nil {
		return index.CacheEntry{}, err
	}
	if entry.RecordID == 0 {
		return index.CacheEntry{}, errors.New("cache entry without record id")
	}
	return index.CacheEntry{RecordID: entry.RecordID, Size: entry.Size}, nil
}

// Close 关闭连接池
func (c *RedisIndexCache) Close() error {
	return c.client.Close()
}
