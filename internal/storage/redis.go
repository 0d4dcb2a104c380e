package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"resume-extractor/internal/config"
	"resume-extractor/internal/constants"
	"resume-extractor/internal/tracing"
	"resume-extractor/internal/types"
)

// ErrCacheMiss 缓存中没有对应的解析结果
var ErrCacheMiss = errors.New("cache miss")

// ErrLockNotAcquired 锁已被其他请求持有
var ErrLockNotAcquired = errors.New("lock not acquired")

var redisTracer = otel.Tracer("resume-extractor/storage/redis")

// releaseLockScript 只删除自己持有的锁
const releaseLockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`

// CachedParse 缓存中的一次解析结果
type CachedParse struct {
	SubmissionUUID string              `json:"submission_uuid"`
	Resume         *types.ParsedResume `json:"resume"`
}

// Redis 解析结果缓存
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// ParsedResumeKey 按原始文件MD5生成缓存键
func ParsedResumeKey(md5Hex string) string {
	return fmt.Sprintf(constants.KeyParsedResume, md5Hex)
}

// ParseLockKey 按原始文件MD5生成锁键
func ParseLockKey(md5Hex string) string {
	return fmt.Sprintf(constants.KeyParseLock, md5Hex)
}

// NewRedisAdapter 创建Redis连接并挂载OpenTelemetry钩子
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) startSpan(ctx context.Context, name, operation, key string) (context.Context, trace.Span) {
	return redisTracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemRedis,
			attribute.Int("db.redis.database_index", r.config.DB),
			attribute.String("db.operation", operation),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		),
	)
}

// GetParsedResume 读取缓存的解析结果，未命中返回 ErrCacheMiss
func (r *Redis) GetParsedResume(ctx context.Context, md5Hex string) (*CachedParse, error) {
	key := ParsedResumeKey(md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.GetParsedResume", "GET", key)
	defer span.End()

	val, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, fmt.Errorf("读取解析缓存失败: %w", err)
	}

	var parsed CachedParse
	if err := json.Unmarshal(val, &parsed); err != nil || parsed.Resume == nil {
		// 损坏的缓存按未命中处理，随后会被覆盖
		span.SetAttributes(attribute.Bool("cache.corrupted", true))
		return nil, ErrCacheMiss
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &parsed, nil
}

// SetParsedResume 写入解析结果，TTL 为 0 时不过期
func (r *Redis) SetParsedResume(ctx context.Context, md5Hex string, parsed *CachedParse) error {
	key := ParsedResumeKey(md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.SetParsedResume", "SET", key)
	defer span.End()

	data, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("序列化解析结果失败: %w", err)
	}
	if err := r.Client.Set(ctx, key, data, r.config.CacheTTL()).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入解析缓存失败: %w", err)
	}
	return nil
}

// AcquireParseLock 以 token 获取同一文件的解析锁，已被持有时返回 ErrLockNotAcquired
func (r *Redis) AcquireParseLock(ctx context.Context, md5Hex, token string, ttl time.Duration) error {
	key := ParseLockKey(md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.AcquireParseLock", "SET NX", key)
	defer span.End()

	ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("获取解析锁失败: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}
	return nil
}

// ReleaseParseLock 释放解析锁，令牌不匹配时什么也不做
func (r *Redis) ReleaseParseLock(ctx context.Context, md5Hex, token string) error {
	key := ParseLockKey(md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.ReleaseParseLock", "EVAL", key)
	defer span.End()

	if err := r.Client.Eval(ctx, releaseLockScript, []string{key}, token).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("释放解析锁失败: %w", err)
	}
	return nil
}
