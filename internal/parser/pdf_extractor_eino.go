package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"

	"resume-extractor/internal/logger"
)

// EinoPDFExtractor 使用 Eino PDF Parser 按页提取文本
type EinoPDFExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
	log     zerolog.Logger
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFExtractor)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(l zerolog.Logger) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		e.log = l
	}
}

// WithEinoTimeout 单次解析的超时时间，<=0 表示只受调用方 ctx 约束
func WithEinoTimeout(timeout time.Duration) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		e.timeout = timeout
	}
}

// NewEinoPDFExtractor 初始化 Eino PDF 文本提取器
// 按页面分割，页序即文档顺序
func NewEinoPDFExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &EinoPDFExtractor{
		parser:  p,
		timeout: 30 * time.Second,
		log:     logger.Component("pdf_parser"),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// ExtractPages 返回每一页的文本
func (e *EinoPDFExtractor) ExtractPages(ctx context.Context, data []byte, uri string) ([]string, error) {
	startTime := time.Now()
	e.log.Debug().Str("uri", uri).Int("size_bytes", len(data)).Msg("开始提取PDF文本")

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(map[string]any{
			"source_file_path": uri,
			"extraction_time":  startTime.Format(time.RFC3339),
		}),
	)
	if err != nil {
		e.log.Warn().Err(err).Str("uri", uri).Dur("duration", time.Since(startTime)).Msg("PDF解析失败")
		return nil, fmt.Errorf("eino PDF parser failed for URI %s: %w", uri, err)
	}

	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		pages = append(pages, doc.Content)
	}

	e.log.Debug().
		Str("uri", uri).
		Int("pages", len(pages)).
		Dur("duration", time.Since(startTime)).
		Msg("PDF文本提取完成")
	return pages, nil
}

// ExtractText 各页文本按页序直接拼接，不加分隔符
func (e *EinoPDFExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	pages, err := e.ExtractPages(ctx, data, uri)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, ""), nil
}
