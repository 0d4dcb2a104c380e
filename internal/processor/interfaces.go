package processor

import (
	"context"
	"time"

	"resume-extractor/internal/storage"
	"resume-extractor/internal/storage/models"
)

// ResultCache 按原始文件MD5缓存解析结果
type ResultCache interface {
	GetParsedResume(ctx context.Context, md5Hex string) (*storage.CachedParse, error)
	SetParsedResume(ctx context.Context, md5Hex string, parsed *storage.CachedParse) error
	AcquireParseLock(ctx context.Context, md5Hex, token string, ttl time.Duration) error
	ReleaseParseLock(ctx context.Context, md5Hex, token string) error
}

// OriginalArchive 原始简历文件归档
type OriginalArchive interface {
	UploadResumeFile(ctx context.Context, submissionUUID, fileExt string, data []byte) (string, error)
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// ResultRepository 解析结果持久化
type ResultRepository interface {
	SaveParsedResume(ctx context.Context, rec *models.ParsedResumeRecord) error
	GetParsedResume(ctx context.Context, submissionUUID string) (*models.ParsedResumeRecord, error)
}

// EventPublisher 解析完成事件
type EventPublisher interface {
	PublishResumeParsed(ctx context.Context, msg storage.ResumeParsedMessage) error
}

// OutboxWriter 在同一事务中写入解析记录和待发布事件
type OutboxWriter interface {
	SaveParsedResumeWithOutbox(ctx context.Context, rec *models.ParsedResumeRecord, msg *models.OutboxMessage) error
}

var (
	_ OutboxWriter     = (*storage.MySQL)(nil)
	_ ResultCache      = (*storage.Redis)(nil)
	_ OriginalArchive  = (*storage.MinIO)(nil)
	_ ResultRepository = (*storage.MySQL)(nil)
	_ EventPublisher   = (*storage.RabbitMQ)(nil)
)
