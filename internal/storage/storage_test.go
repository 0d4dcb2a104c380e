package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	gormlogger "gorm.io/gorm/logger"

	"resume-extractor/internal/config"
	"resume-extractor/internal/types"
)

func TestKeys(t *testing.T) {
	md5Hex := "d41d8cd98f00b204e9800998ecf8427e"
	assert.Equal(t, "app:resume:parsed:"+md5Hex, ParsedResumeKey(md5Hex))
	assert.Equal(t, "app:resume:lock:"+md5Hex, ParseLockKey(md5Hex))
}

func TestOriginalObjectKey(t *testing.T) {
	assert.Equal(t, "resume/0190a1b2/original.pdf", OriginalObjectKey("0190a1b2", ".PDF"))
	assert.Equal(t, "resume/0190a1b2/original.docx", OriginalObjectKey("0190a1b2", ".docx"))
}

func TestGetContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", getContentType(".pdf"))
	assert.Equal(t, "application/pdf", getContentType(".PDF"))
	assert.Equal(t, "application/msword", getContentType(".doc"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", getContentType(".docx"))
	assert.Equal(t, "application/octet-stream", getContentType(".txt"))
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, gormLogLevel(1))
	assert.Equal(t, gormlogger.Error, gormLogLevel(2))
	assert.Equal(t, gormlogger.Warn, gormLogLevel(3))
	assert.Equal(t, gormlogger.Info, gormLogLevel(4))
	assert.Equal(t, gormlogger.Error, gormLogLevel(0), "未配置时使用 Error")
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(&config.MySQLConfig{Host: "db", Port: 3307, Username: "u", Password: "p", Database: "resumes"})
	assert.Equal(t, "u:p@tcp(db:3307)/resumes?charset=utf8mb4&parseTime=True&loc=Local&timeout=10s", dsn)
}

func TestAMQPHeaderCarrier_InjectsTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := amqp.Table{}
	propagation.TraceContext{}.Inject(ctx, amqpHeaderCarrier(headers))

	traceparent, ok := headers["traceparent"].(string)
	require.True(t, ok, "应写入 traceparent 头")
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
	assert.Contains(t, amqpHeaderCarrier(headers).Keys(), "traceparent")
	assert.Equal(t, "", amqpHeaderCarrier(headers).Get("missing"))
}

func TestNewStorage_AllDisabled(t *testing.T) {
	s, err := NewStorage(context.Background(), config.DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, s.MinIO)
	assert.Nil(t, s.RabbitMQ)
	assert.Nil(t, s.MySQL)
	assert.Nil(t, s.Redis)
	s.Close()

	_, err = NewStorage(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewStorage_UnreachableComponentIsSkipped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1" // 无服务监听

	s, err := NewStorage(context.Background(), cfg)
	require.NoError(t, err, "单个组件失败不应阻止启动")
	assert.Nil(t, s.Redis)
}

// newTestRedis 需要设置 TEST_REDIS_ADDR 才会运行
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置 TEST_REDIS_ADDR，跳过Redis集成测试")
	}
	r, err := NewRedisAdapter(&config.RedisConfig{Enabled: true, Address: addr, DB: 15, CacheTTLHours: 1})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedis_ParsedResumeRoundTrip(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	md5Hex := "test-md5-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { r.Client.Del(ctx, ParsedResumeKey(md5Hex)) })

	_, err := r.GetParsedResume(ctx, md5Hex)
	assert.True(t, errors.Is(err, ErrCacheMiss))

	resume := types.NewParsedResume()
	resume.Name = "张三"
	resume.Skills = []string{"Go", "Redis"}
	in := &CachedParse{SubmissionUUID: "0190a1b2-0000-7000-8000-000000000000", Resume: resume}
	require.NoError(t, r.SetParsedResume(ctx, md5Hex, in))

	out, err := r.GetParsedResume(ctx, md5Hex)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	ttl, err := r.Client.TTL(ctx, ParsedResumeKey(md5Hex)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute)

	// 损坏的缓存按未命中处理
	require.NoError(t, r.Client.Set(ctx, ParsedResumeKey(md5Hex), "{not json", time.Minute).Err())
	_, err = r.GetParsedResume(ctx, md5Hex)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedis_ParseLock(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	md5Hex := "lock-md5-" + time.Now().Format("150405.000000")

	require.NoError(t, r.AcquireParseLock(ctx, md5Hex, "owner-a", time.Minute))
	assert.ErrorIs(t, r.AcquireParseLock(ctx, md5Hex, "owner-b", time.Minute), ErrLockNotAcquired)

	// 非持有者释放无效
	require.NoError(t, r.ReleaseParseLock(ctx, md5Hex, "owner-b"))
	assert.ErrorIs(t, r.AcquireParseLock(ctx, md5Hex, "owner-b", time.Minute), ErrLockNotAcquired)

	require.NoError(t, r.ReleaseParseLock(ctx, md5Hex, "owner-a"))
	require.NoError(t, r.AcquireParseLock(ctx, md5Hex, "owner-b", time.Minute))
	require.NoError(t, r.ReleaseParseLock(ctx, md5Hex, "owner-b"))
}
