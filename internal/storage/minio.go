package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-extractor/internal/config"
	"resume-extractor/internal/logger"
	"resume-extractor/internal/tracing"
)

var minioTracer = otel.Tracer("resume-extractor/storage/minio")

// MinIO 归档原始简历文件
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	log            zerolog.Logger
}

// NewMinIO 创建MinIO客户端，确保存储桶存在并设置过期规则
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	log := logger.Component("minio")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: cfg.OriginalsBucket,
		log:            log,
	}

	if err := m.ensureBucketExists(ctx, m.originalBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原始简历存储桶 %s 存在失败: %w", m.originalBucket, err)
	}

	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalBucket, "expire-originals", cfg.OriginalFileExpireDays); err != nil {
			// 生命周期规则失败不影响归档
			log.Warn().Err(err).Str("bucket", m.originalBucket).Msg("设置生命周期规则失败")
		}
	}

	log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", m.originalBucket).Msg("MinIO客户端初始化完成")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.log.Info().Str("bucket", bucketName).Msg("已创建存储桶")
	return nil
}

// setupBucketLifecycle 为指定存储桶设置过期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, cfg)
}

// OriginalObjectKey 原始文件对象键，例如 resume/<uuid>/original.pdf
func OriginalObjectKey(submissionUUID, fileExt string) string {
	return fmt.Sprintf("resume/%s/original%s", submissionUUID, strings.ToLower(fileExt))
}

// UploadResumeFile 上传原始简历文件，返回对象键 (不含bucket前缀)
func (m *MinIO) UploadResumeFile(ctx context.Context, submissionUUID, fileExt string, data []byte) (string, error) {
	objectName := OriginalObjectKey(submissionUUID, fileExt)
	ctx, span := minioTracer.Start(ctx, "MinIO.UploadResumeFile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.bucket", m.originalBucket),
			attribute.String("storage.object", objectName),
			attribute.Int("storage.size_bytes", len(data)),
		))
	defer span.End()

	info, err := m.client.PutObject(ctx, m.originalBucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: getContentType(fileExt)})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.originalBucket, objectName, err)
	}

	m.log.Debug().Str("object", objectName).Str("etag", info.ETag).Int64("size", info.Size).Msg("原始简历已归档")
	return objectName, nil
}

// GetPresignedURL 生成原始文件的临时下载地址
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.originalBucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// getContentType 根据扩展名返回 Content-Type
func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
