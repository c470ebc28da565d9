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

	"resume-parser-go/internal/config"
	"resume-parser-go/internal/constants"
	"resume-parser-go/internal/tracing"
	"resume-parser-go/internal/types"
)

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("resume-parser-go/storage/redis")

var errRedisNotInit = errors.New("redis client is not initialized")

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries: cfg.MaxRetries,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return errRedisNotInit
	}
	return r.Client.Ping(ctx).Err()
}

// ParseCacheTTL 返回解析结果缓存的过期时间
func (r *Redis) ParseCacheTTL() time.Duration {
	if r.config == nil || r.config.ParseCacheTTLHours <= 0 {
		return constants.DefaultParseCacheTTL
	}
	return time.Duration(r.config.ParseCacheTTLHours) * time.Hour
}

// parsedResumeKey 同一文件按不同格式上传时解析路径不同，结果分开缓存
func parsedResumeKey(fileMD5 string, format types.SourceFormat) string {
	return fmt.Sprintf(constants.KeyParsedResume, fileMD5, format)
}

// GetParsedResume 按文件MD5和来源格式读取缓存的解析结果，未命中时返回 (nil, nil)
func (r *Redis) GetParsedResume(ctx context.Context, fileMD5 string, format types.SourceFormat) (*types.ParsedResume, error) {
	if r.Client == nil {
		return nil, errRedisNotInit
	}

	key := parsedResumeKey(fileMD5, format)
	ctx, span := redisTracer.Start(ctx, "Redis.GetParsedResume",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", tracing.TruncateString(key, tracing.MaxRedisLength)),
		))
	defer span.End()

	data, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, nil
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, fmt.Errorf("读取解析缓存失败: %w", err)
	}

	var parsed types.ParsedResume
	if err := json.Unmarshal(data, &parsed); err != nil || parsed.RawText == "" {
		// 内容损坏或为空（例如 null）时删除并当作未命中，由调用方重新解析
		span.SetAttributes(attribute.Bool("cache.hit", false), attribute.Bool("cache.corrupted", true))
		if delErr := r.DeleteParsedResume(ctx, fileMD5, format); delErr != nil {
			tracing.RecordError(span, delErr, tracing.ErrorTypeRedis)
		}
		return nil, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &parsed, nil
}

// SetParsedResume 按文件MD5和来源格式缓存解析结果
func (r *Redis) SetParsedResume(ctx context.Context, fileMD5 string, format types.SourceFormat, parsed *types.ParsedResume) error {
	if r.Client == nil {
		return errRedisNotInit
	}
	if parsed == nil || parsed.RawText == "" {
		return fmt.Errorf("解析结果不能为空")
	}

	key := parsedResumeKey(fileMD5, format)
	ctx, span := redisTracer.Start(ctx, "Redis.SetParsedResume",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", tracing.TruncateString(key, tracing.MaxRedisLength)),
		))
	defer span.End()

	data, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("序列化解析结果失败: %w", err)
	}

	if err := r.Client.Set(ctx, key, data, r.ParseCacheTTL()).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入解析缓存失败: %w", err)
	}
	return nil
}

// DeleteParsedResume 删除缓存的解析结果
func (r *Redis) DeleteParsedResume(ctx context.Context, fileMD5 string, format types.SourceFormat) error {
	if r.Client == nil {
		return errRedisNotInit
	}
	if err := r.Client.Del(ctx, parsedResumeKey(fileMD5, format)).Err(); err != nil {
		return fmt.Errorf("删除解析缓存失败: %w", err)
	}
	return nil
}
