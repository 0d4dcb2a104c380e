package processor // 简历解析的编排：格式识别 -> 文本提取 -> 规范化 -> 字段提取

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-extractor/internal/extractor"
	"resume-extractor/internal/logger"
	"resume-extractor/internal/parser"
	"resume-extractor/internal/tracing"
	"resume-extractor/internal/types"
)

var tracer = otel.Tracer("processor")

// ResumeProcessor 简历字段解析器。构造后只读，可并发调用 Parse
type ResumeProcessor struct {
	formats   parser.Formats
	extractor *extractor.FieldExtractor
	log       zerolog.Logger
}

// NewResumeProcessor 创建解析器，识别器不可用时直接失败
func NewResumeProcessor(formats parser.Formats, recognizer extractor.PersonRecognizer, opts ...ProcessorOption) (*ResumeProcessor, error) {
	settings := defaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	extractorOpts := append([]extractor.Option{extractor.WithLogger(settings.Logger)}, settings.ExtractorOptions...)
	fe, err := extractor.NewFieldExtractor(recognizer, extractorOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
	}

	return &ResumeProcessor{
		formats:   formats,
		extractor: fe,
		log:       settings.Logger,
	}, nil
}

// Supports 判断文件扩展名是否受支持
func (p *ResumeProcessor) Supports(fileName string) bool {
	_, _, ok := p.formats.Lookup(fileName)
	return ok
}

// Parse 解析一份简历。只在格式不支持或文档读取失败时返回错误，字段缺失不是错误
func (p *ResumeProcessor) Parse(ctx context.Context, fileName string, data []byte) (*types.ParsedResume, error) {
	ctx, span := tracer.Start(ctx, "ResumeProcessor.Parse")
	defer span.End()

	startTime := time.Now()
	ext, textExtractor, ok := p.formats.Lookup(fileName)
	span.SetAttributes(
		attribute.String("resume.file_name", fileName),
		attribute.String("resume.ext", ext),
		attribute.Int("resume.size_bytes", len(data)),
	)
	if !ok {
		err := NewUnsupportedFormatError(fileName, ext)
		p.log.Warn().Str("file_name", fileName).Str("ext", ext).Msg("不支持的简历格式")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	raw, err := textExtractor.ExtractText(ctx, data, fileName)
	if err != nil {
		perr := NewParseFailureError(fileName, ext, err)
		p.log.Error().Err(err).Str("file_name", fileName).Str("ext", ext).Str("stage", "extract_text").Msg("简历文本提取失败")
		tracing.RecordError(span, perr, tracing.ErrorTypeExternal)
		return nil, perr
	}
	extractDuration := time.Since(startTime)

	text := extractor.Normalize(raw)
	result := p.extractor.ExtractAll(ctx, text)

	span.SetAttributes(
		attribute.Int("resume.text_length", len(text)),
		attribute.String("resume.name", tracing.MaskPII(result.Name)),
		attribute.Int("resume.education_count", len(result.Education)),
		attribute.Int("resume.work_experience_count", len(result.WorkExperience)),
		attribute.Int("resume.skills_count", len(result.Skills)),
	)
	p.log.Info().
		Str("file_name", fileName).
		Str("ext", ext).
		Int("raw_length", len(raw)).
		Int("text_length", len(text)).
		Dur("extract_duration", extractDuration).
		Dur("total_duration", time.Since(startTime)).
		Bool("empty", result.IsEmpty()).
		Msg("简历解析完成")
	return result, nil
}

// ParseFile 从本地路径解析简历，扩展名不支持时不读取文件
func (p *ResumeProcessor) ParseFile(ctx context.Context, path string) (*types.ParsedResume, error) {
	ext, _, ok := p.formats.Lookup(path)
	if !ok {
		return nil, NewUnsupportedFormatError(path, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResumeParseError{FileName: path, Op: "read_file", Ext: ext, BaseErr: ErrParseFailure, Cause: err}
	}
	return p.Parse(ctx, path, data)
}

// newDefaultLogger 解析器默认日志器
func newDefaultLogger() zerolog.Logger {
	return logger.Component("processor")
}
