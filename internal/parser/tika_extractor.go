package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"resume-extractor/internal/logger"
)

// TikaExtractor 是基于 Apache Tika Server 的文本提取器，
// 用于 gooxml 无法读取的旧版二进制 .doc
type TikaExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client
	log    zerolog.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaExtractor)

// WithTikaLogger 配置自定义日志记录器
func WithTikaLogger(l zerolog.Logger) TikaOption {
	return func(e *TikaExtractor) {
		e.log = l
	}
}

// WithTimeout 配置HTTP客户端超时时间
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		if timeout > 0 {
			e.Client.Timeout = timeout
		}
	}
}

var _ TextExtractor = (*TikaExtractor)(nil)

// NewTikaExtractor 创建一个新的 Tika 文本提取器
func NewTikaExtractor(serverURL string, options ...TikaOption) *TikaExtractor {
	extractor := &TikaExtractor{
		ServerURL: strings.TrimRight(serverURL, "/"),
		Client:    &http.Client{Timeout: 60 * time.Second},
		log:       logger.Component("tika_parser"),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

// contentTypeFor 按扩展名推断 Content-Type，未知时交给 Tika 自动识别
func contentTypeFor(uri string) string {
	switch Ext(uri) {
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".pdf":
		return "application/pdf"
	}
	if t := mime.TypeByExtension(Ext(uri)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ExtractText 以纯文本模式调用 Tika
func (e *TikaExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(uri))
	req.Header.Set("Accept", "text/plain; charset=UTF-8")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}

	text := string(textBytes)
	e.log.Debug().
		Str("uri", uri).
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Tika文本提取完成")
	return text, nil
}
