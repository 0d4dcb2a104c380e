package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"baliance.com/gooxml/document"
	"github.com/rs/zerolog"

	"resume-extractor/internal/logger"
)

// DocxExtractor 使用 gooxml 读取 Word 文档的段落文本
type DocxExtractor struct {
	log zerolog.Logger
}

// NewDocxExtractor 创建 Word 文本提取器
func NewDocxExtractor() *DocxExtractor {
	return &DocxExtractor{log: logger.Component("docx_parser")}
}

// ExtractParagraphs 按文档顺序返回每个段落的文本，空段落也保留
func (d *DocxExtractor) ExtractParagraphs(ctx context.Context, data []byte, uri string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		d.log.Warn().Err(err).Str("uri", uri).Msg("Word文档读取失败")
		return nil, fmt.Errorf("gooxml failed to read %s: %w", uri, err)
	}

	paras := doc.Paragraphs()
	texts := make([]string, 0, len(paras))
	for _, p := range paras {
		var sb strings.Builder
		for _, run := range p.Runs() {
			sb.WriteString(run.Text())
		}
		texts = append(texts, sb.String())
	}

	d.log.Debug().Str("uri", uri).Int("paragraphs", len(texts)).Msg("Word文本提取完成")
	return texts, nil
}

// ExtractText 段落文本以换行连接
func (d *DocxExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	paras, err := d.ExtractParagraphs(ctx, data, uri)
	if err != nil {
		return "", err
	}
	return strings.Join(paras, "\n"), nil
}
