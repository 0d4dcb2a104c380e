package processor

import (
	"time"

	"github.com/rs/zerolog"

	"resume-extractor/internal/extractor"
)

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Logger           zerolog.Logger     // 日志记录器
	ExtractorOptions []extractor.Option // 透传给字段提取器
}

// ProcessorOption 处理器选项函数类型
type ProcessorOption func(*Settings)

func defaultSettings() Settings {
	return Settings{Logger: newDefaultLogger()}
}

// WithLogger 设置日志记录器
func WithLogger(l zerolog.Logger) ProcessorOption {
	return func(s *Settings) {
		s.Logger = l
	}
}

// WithClock 设置出生年份换算年龄使用的时钟
func WithClock(now func() time.Time) ProcessorOption {
	return func(s *Settings) {
		s.ExtractorOptions = append(s.ExtractorOptions, extractor.WithClock(now))
	}
}
