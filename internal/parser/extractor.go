// Package parser 把上传的简历文档转换为原始文本。
// PDF 按页提取后直接拼接，Word 按段落提取后以换行连接。
package parser

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
)

// TextExtractor 把一种文档格式的字节内容转换为原始文本
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, uri string) (string, error)
}

// Formats 扩展名（小写，带点）到文本提取器的映射
type Formats map[string]TextExtractor

// Ext 返回小写扩展名，例如 ".pdf"
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Lookup 按文件名选择提取器，扩展名大小写不敏感
func (f Formats) Lookup(filename string) (string, TextExtractor, bool) {
	ext := Ext(filename)
	ex, ok := f[ext]
	if !ok || ex == nil {
		return ext, nil, false
	}
	return ext, ex, true
}

// Supported 返回已注册的扩展名，按字母排序
func (f Formats) Supported() []string {
	exts := make([]string, 0, len(f))
	for ext := range f {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
