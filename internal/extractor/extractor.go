package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"resume-extractor/internal/logger"
	"resume-extractor/internal/types"
)

// ErrNoRecognizer 构造时未提供实体识别器
var ErrNoRecognizer = errors.New("extractor: person recognizer is required")

// PersonRecognizer 命名实体识别能力：给定文本返回带类别的实体片段
type PersonRecognizer interface {
	FindPersonEntities(ctx context.Context, text string) ([]types.EntitySpan, error)
}

// FieldExtractor 从规范化后的简历文本中提取各字段。
// 构造后只读，可被多个 goroutine 同时使用。
type FieldExtractor struct {
	recognizer PersonRecognizer
	now        func() time.Time
	log        zerolog.Logger
}

// Option 配置 FieldExtractor
type Option func(*FieldExtractor)

// WithClock 替换当前时间来源，出生年份换算年龄时使用
func WithClock(now func() time.Time) Option {
	return func(e *FieldExtractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger 指定日志器
func WithLogger(l zerolog.Logger) Option {
	return func(e *FieldExtractor) {
		e.log = l
	}
}

// NewFieldExtractor 创建字段提取器，recognizer 不能为空
func NewFieldExtractor(recognizer PersonRecognizer, opts ...Option) (*FieldExtractor, error) {
	if recognizer == nil {
		return nil, ErrNoRecognizer
	}
	e := &FieldExtractor{
		recognizer: recognizer,
		now:        time.Now,
		log:        logger.Component("extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExtractAll 在同一份规范化文本上运行全部字段提取器
func (e *FieldExtractor) ExtractAll(ctx context.Context, text string) *types.ParsedResume {
	return &types.ParsedResume{
		Name:           e.ExtractName(ctx, text),
		Gender:         e.ExtractGender(text),
		Age:            e.ExtractAge(text),
		Phone:          e.ExtractPhone(text),
		Email:          e.ExtractEmail(text),
		Education:      e.ExtractEducation(text),
		WorkExperience: e.ExtractWorkExperience(text),
		Skills:         e.ExtractSkills(text),
	}
}

// guard 执行单个字段的提取，错误和 panic 都只记录日志并返回零值
func guard[T any](log zerolog.Logger, field string, zero T, fn func() (T, error)) (result T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("field", field).Err(fmt.Errorf("panic: %v", r)).Msg("字段提取异常，使用默认值")
			result = zero
		}
	}()

	v, err := fn()
	if err != nil {
		log.Error().Str("field", field).Err(err).Msg("字段提取失败，使用默认值")
		return zero
	}
	return v
}
