package logger // 全局结构化日志，基于 zerolog

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Logger 全局日志实例，Init 之前为 zerolog 默认实例
	Logger = log.Logger
)

// Config 日志配置
type Config struct {
	Level        string `json:"level" yaml:"level"`                 // debug, info, warn, error
	Format       string `json:"format" yaml:"format"`               // json 或 pretty
	TimeFormat   string `json:"time_format" yaml:"time_format"`     // 时间戳格式
	ReportCaller bool   `json:"report_caller" yaml:"report_caller"` // 是否输出调用位置
}

// Init 根据配置初始化全局日志，输出到标准输出
func Init(config Config) {
	InitWithWriter(config, os.Stdout)
}

// InitWithWriter 与 Init 相同，但允许指定输出目标（测试或写文件时使用）
func InitWithWriter(config Config, out io.Writer) {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.TimeFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	} else {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	output := out
	if config.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: config.TimeFormat,
		}
	}

	ctxLogger := zerolog.New(output).Level(level).With().Timestamp()
	if config.ReportCaller {
		ctxLogger = ctxLogger.Caller()
	}

	Logger = ctxLogger.Logger()
	log.Logger = Logger
}

// Component 返回带 component 字段的子日志器
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Debug 开始一条调试级别日志
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info 开始一条信息级别日志
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn 开始一条警告级别日志
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error 开始一条错误级别日志
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal 记录后退出进程
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// Ctx 从上下文取出日志器，没有则返回全局日志器
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &Logger
	}
	return l
}

// WithContext 把全局日志器放进上下文
func WithContext(ctx context.Context) context.Context {
	return Logger.WithContext(ctx)
}
