package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"resume-extractor/internal/logger"
	"resume-extractor/internal/storage"
	"resume-extractor/internal/storage/models"
	"resume-extractor/internal/tracing"
	"resume-extractor/internal/types"
)

const (
	// parseLockTTL 同一文件解析锁的过期时间
	parseLockTTL = 2 * time.Minute
	// cacheWaitTimeout 锁被占用时等待另一请求写入缓存的最长时间
	cacheWaitTimeout = 10 * time.Second
	// cacheWaitInterval 等待缓存时的轮询间隔
	cacheWaitInterval = 200 * time.Millisecond
	// originalURLExpiry 原始文件下载地址有效期
	originalURLExpiry = 15 * time.Minute
)

// ErrPersistenceDisabled 未启用持久化，无法按 UUID 查询
var ErrPersistenceDisabled = errors.New("未启用解析结果持久化")

// ParseOutcome 一次上传解析的结果
type ParseOutcome struct {
	SubmissionUUID string              `json:"submission_uuid"`
	Cached         bool                `json:"cached"`
	Resume         *types.ParsedResume `json:"resume"`
}

// StoredResume 已持久化的解析记录
type StoredResume struct {
	SubmissionUUID   string              `json:"submission_uuid"`
	OriginalFilename string              `json:"original_filename"`
	FileExt          string              `json:"file_ext"`
	OriginalURL      string              `json:"original_url,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	Resume           *types.ParsedResume `json:"resume"`
}

// ResumeService 在解析核心外围编排缓存、归档、持久化和事件。
// 除解析本身外的组件都是可选的，失败只记录日志。
type ResumeService struct {
	processor *ResumeProcessor
	cache     ResultCache
	archive   OriginalArchive
	repo      ResultRepository
	events    EventPublisher
	outbox    *outboxTarget
	log       zerolog.Logger
	now       func() time.Time
	newID     func() (string, error)
}

type outboxTarget struct {
	writer     OutboxWriter
	exchange   string
	routingKey string
}

// ServiceOption 服务选项函数类型
type ServiceOption func(*ResumeService)

// WithCache 设置解析结果缓存
func WithCache(c ResultCache) ServiceOption {
	return func(s *ResumeService) { s.cache = c }
}

// WithArchive 设置原始文件归档
func WithArchive(a OriginalArchive) ServiceOption {
	return func(s *ResumeService) { s.archive = a }
}

// WithRepository 设置解析结果持久化
func WithRepository(r ResultRepository) ServiceOption {
	return func(s *ResumeService) { s.repo = r }
}

// WithEventPublisher 设置解析完成事件发布
func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(s *ResumeService) { s.events = p }
}

// WithOutbox 解析记录与完成事件改为同事务写入发件箱，由中继异步发布。
// 设置后不再直接调用 ResultRepository.SaveParsedResume 和 EventPublisher
func WithOutbox(w OutboxWriter, exchange, routingKey string) ServiceOption {
	return func(s *ResumeService) {
		if w != nil {
			s.outbox = &outboxTarget{writer: w, exchange: exchange, routingKey: routingKey}
		}
	}
}

// WithServiceLogger 设置日志记录器
func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(s *ResumeService) { s.log = l }
}

// WithIDGenerator 设置 SubmissionUUID 生成函数
func WithIDGenerator(fn func() (string, error)) ServiceOption {
	return func(s *ResumeService) { s.newID = fn }
}

// StorageOptions 把已初始化的存储组件转换为服务选项，nil 组件不会被注入
func StorageOptions(s *storage.Storage) []ServiceOption {
	if s == nil {
		return nil
	}
	var opts []ServiceOption
	if s.Redis != nil {
		opts = append(opts, WithCache(s.Redis))
	}
	if s.MinIO != nil {
		opts = append(opts, WithArchive(s.MinIO))
	}
	if s.MySQL != nil {
		opts = append(opts, WithRepository(s.MySQL))
	}
	if s.RabbitMQ != nil {
		opts = append(opts, WithEventPublisher(s.RabbitMQ))
	}
	return opts
}

// newSubmissionUUID 生成按时间有序的 v7 UUID
func newSubmissionUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewResumeService 创建简历服务
func NewResumeService(p *ResumeProcessor, opts ...ServiceOption) (*ResumeService, error) {
	if p == nil {
		return nil, fmt.Errorf("resume processor is required")
	}
	s := &ResumeService{
		processor: p,
		log:       logger.Component("resume_service"),
		now:       time.Now,
		newID:     newSubmissionUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ParseUpload 解析一份上传的简历。
// 格式不支持时在任何存储副作用之前返回 ErrUnsupportedFormat。
func (s *ResumeService) ParseUpload(ctx context.Context, fileName string, data []byte) (*ParseOutcome, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.ParseUpload")
	defer span.End()
	span.SetAttributes(attribute.String("resume.file_name", tracing.SafeFileName(fileName)))

	ext, _, ok := s.processor.formats.Lookup(fileName)
	if !ok {
		err := NewUnsupportedFormatError(fileName, ext)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	sum := md5.Sum(data)
	md5Hex := hex.EncodeToString(sum[:])
	span.SetAttributes(attribute.String("resume.md5", md5Hex))
	log := s.log.With().Str("file_name", fileName).Str("md5", md5Hex).Logger()

	if hit := s.lookupCache(ctx, md5Hex, log); hit != nil {
		span.SetAttributes(attribute.Bool("resume.cached", true))
		return hit, nil
	}

	submissionUUID, err := s.newID()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, fmt.Errorf("生成 SubmissionUUID 失败: %w", err)
	}
	span.SetAttributes(attribute.String("resume.submission_uuid", submissionUUID))
	log = log.With().Str("submission_uuid", submissionUUID).Logger()

	if s.cache != nil {
		release, hit := s.lockOrWait(ctx, md5Hex, submissionUUID, log)
		if hit != nil {
			span.SetAttributes(attribute.Bool("resume.cached", true))
			return hit, nil
		}
		defer release()
	}

	var objectKey string
	if s.archive != nil {
		objectKey, err = s.archive.UploadResumeFile(ctx, submissionUUID, ext, data)
		if err != nil {
			log.Warn().Err(err).Msg("归档原始简历失败，继续解析")
			objectKey = ""
		}
	}

	resume, err := s.processor.Parse(ctx, fileName, data)
	if err != nil {
		return nil, err
	}

	msg := storage.ResumeParsedMessage{
		SubmissionUUID:      submissionUUID,
		OriginalFilename:    fileName,
		FileExt:             ext,
		RawFileMD5:          md5Hex,
		OriginalObjectKey:   objectKey,
		ParsedAt:            s.now(),
		HasName:             resume.Name != "",
		EducationCount:      len(resume.Education),
		WorkExperienceCount: len(resume.WorkExperience),
		SkillsCount:         len(resume.Skills),
	}

	if s.outbox != nil || s.repo != nil {
		if rec, err := models.NewParsedResumeRecord(submissionUUID, fileName, ext, md5Hex, objectKey, resume); err != nil {
			log.Warn().Err(err).Msg("构造解析记录失败")
		} else if s.outbox != nil {
			s.saveWithOutbox(ctx, rec, msg, log)
		} else if err := s.repo.SaveParsedResume(ctx, rec); err != nil {
			log.Warn().Err(err).Msg("持久化解析结果失败")
		}
	}

	if s.cache != nil {
		if err := s.cache.SetParsedResume(ctx, md5Hex, &storage.CachedParse{SubmissionUUID: submissionUUID, Resume: resume}); err != nil {
			log.Warn().Err(err).Msg("写入解析缓存失败")
		}
	}

	if s.events != nil && s.outbox == nil {
		if err := s.events.PublishResumeParsed(ctx, msg); err != nil {
			log.Warn().Err(err).Msg("发布解析完成事件失败")
		}
	}

	return &ParseOutcome{SubmissionUUID: submissionUUID, Resume: resume}, nil
}

func (s *ResumeService) saveWithOutbox(ctx context.Context, rec *models.ParsedResumeRecord, msg storage.ResumeParsedMessage, log zerolog.Logger) {
	ob, err := models.NewOutboxMessage(msg.SubmissionUUID, models.EventTypeResumeParsed, s.outbox.exchange, s.outbox.routingKey, msg)
	if err != nil {
		log.Warn().Err(err).Msg("构造发件箱消息失败")
		return
	}
	if err := s.outbox.writer.SaveParsedResumeWithOutbox(ctx, rec, ob); err != nil {
		log.Warn().Err(err).Msg("持久化解析结果失败")
	}
}

// lookupCache 查询缓存，任何错误都按未命中处理
func (s *ResumeService) lookupCache(ctx context.Context, md5Hex string, log zerolog.Logger) *ParseOutcome {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.GetParsedResume(ctx, md5Hex)
	if err != nil {
		if !errors.Is(err, storage.ErrCacheMiss) {
			log.Warn().Err(err).Msg("查询解析缓存失败")
		}
		return nil
	}
	log.Debug().Msg("命中解析缓存")
	return &ParseOutcome{SubmissionUUID: cached.SubmissionUUID, Cached: true, Resume: cached.Resume}
}

// lockOrWait 获取同一文件的解析锁。锁被占用时等待持有者写入缓存，超时后不加锁继续解析
func (s *ResumeService) lockOrWait(ctx context.Context, md5Hex, token string, log zerolog.Logger) (release func(), hit *ParseOutcome) {
	noop := func() {}

	err := s.cache.AcquireParseLock(ctx, md5Hex, token, parseLockTTL)
	if err == nil {
		release = func() {
			if err := s.cache.ReleaseParseLock(context.WithoutCancel(ctx), md5Hex, token); err != nil {
				log.Warn().Err(err).Msg("释放解析锁失败")
			}
		}
		// 前一个持有者可能在首次查缓存之后、加锁之前已写入结果
		if cached := s.lookupCache(ctx, md5Hex, log); cached != nil {
			release()
			return noop, cached
		}
		return release, nil
	}
	if !errors.Is(err, storage.ErrLockNotAcquired) {
		log.Warn().Err(err).Msg("获取解析锁失败，不加锁继续")
		return noop, nil
	}

	log.Debug().Msg("同一文件正在解析，等待缓存")
	waitCtx, cancel := context.WithTimeout(ctx, cacheWaitTimeout)
	defer cancel()
	ticker := time.NewTicker(cacheWaitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-waitCtx.Done():
			log.Debug().Msg("等待缓存超时，继续解析")
			return noop, nil
		case <-ticker.C:
			if hit := s.lookupCache(ctx, md5Hex, log); hit != nil {
				return noop, hit
			}
		}
	}
}

// GetParsed 按 SubmissionUUID 查询已持久化的解析结果
func (s *ResumeService) GetParsed(ctx context.Context, submissionUUID string) (*StoredResume, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.GetParsed")
	defer span.End()
	span.SetAttributes(attribute.String("resume.submission_uuid", submissionUUID))

	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}

	rec, err := s.repo.GetParsedResume(ctx, submissionUUID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, submissionUUID)
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	resume, err := rec.ToParsedResume()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, err
	}

	out := &StoredResume{
		SubmissionUUID:   rec.SubmissionUUID,
		OriginalFilename: rec.OriginalFilename,
		FileExt:          rec.FileExt,
		CreatedAt:        rec.CreatedAt,
		Resume:           resume,
	}
	if s.archive != nil && rec.OriginalObjectKey != "" {
		if url, err := s.archive.GetPresignedURL(ctx, rec.OriginalObjectKey, originalURLExpiry); err != nil {
			s.log.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("生成原始文件下载地址失败")
		} else {
			out.OriginalURL = url
		}
	}
	return out, nil
}
