package ner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-extractor/internal/logger"
	"resume-extractor/internal/tracing"
	"resume-extractor/internal/types"
)

var tracer = otel.Tracer("ner")

const nerSystemPrompt = `你是一个中文命名实体识别器。请识别用户给出的简历文本中的命名实体，只识别以下类别：
- PERSON：人名
- ORG：组织机构，如学校、公司
- LOC：地点

严格按如下 JSON 格式输出，不要输出任何解释：
{"entities":[{"text":"实体原文","label":"PERSON"}]}

实体按在原文中出现的顺序排列；实体文本必须与原文完全一致；没有实体时输出 {"entities":[]}。`

// ErrInvalidResponse 模型输出中没有可解析的实体 JSON
var ErrInvalidResponse = errors.New("实体识别响应格式无效")

var jsonBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

type llmEntities struct {
	Entities []struct {
		Text  string `json:"text"`
		Label string `json:"label"`
	} `json:"entities"`
}

// LLMRecognizer 基于 eino 聊天模型的实体识别器
type LLMRecognizer struct {
	model      model.BaseChatModel
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	log        zerolog.Logger
}

// LLMOption LLMRecognizer 选项
type LLMOption func(*LLMRecognizer)

// WithMaxRetries 可重试错误的最大重试次数
func WithMaxRetries(n int) LLMOption {
	return func(r *LLMRecognizer) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithRetryDelay 首次重试前的等待时间，之后每次翻倍
func WithRetryDelay(d time.Duration) LLMOption {
	return func(r *LLMRecognizer) { r.retryDelay = d }
}

// WithCallTimeout 单次模型调用超时
func WithCallTimeout(d time.Duration) LLMOption {
	return func(r *LLMRecognizer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(l zerolog.Logger) LLMOption {
	return func(r *LLMRecognizer) { r.log = l }
}

// NewLLMRecognizer 创建 LLM 实体识别器
func NewLLMRecognizer(chatModel model.BaseChatModel, opts ...LLMOption) (*LLMRecognizer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	r := &LLMRecognizer{
		model:      chatModel,
		maxRetries: 2,
		retryDelay: time.Second,
		timeout:    20 * time.Second,
		log:        logger.Component("ner_llm"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// FindPersonEntities 识别文本中的命名实体，按出现顺序返回
func (r *LLMRecognizer) FindPersonEntities(ctx context.Context, text string) ([]types.EntitySpan, error) {
	ctx, span := tracer.Start(ctx, "LLMRecognizer.FindPersonEntities")
	defer span.End()
	span.SetAttributes(attribute.Int("ner.text_length", len([]rune(text))))

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	content, err := r.generate(ctx, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, err
	}

	spans, err := parseEntities(content)
	if err != nil {
		r.log.Warn().Str("response", tracing.SafeResumeContent(content)).Msg("无法解析实体识别响应")
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, err
	}
	span.SetAttributes(attribute.Int("ner.entity_count", len(spans)))
	return spans, nil
}

// generate 调用模型，对超时和连接类错误按指数退避重试
func (r *LLMRecognizer) generate(ctx context.Context, text string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(nerSystemPrompt),
		schema.UserMessage(text),
	}

	delay := r.retryDelay
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(delay):
				delay *= 2
			}
			r.log.Debug().Int("attempt", attempt).Err(lastErr).Msg("重试实体识别调用")
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		resp, err := r.model.Generate(callCtx, messages, model.WithTemperature(0))
		cancel()
		if err == nil {
			return resp.Content, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}
	return "", fmt.Errorf("实体识别调用失败: %w", lastErr)
}

// isRetryableError 判断错误是否应该重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := err.Error()
	for _, s := range []string{"timeout", "deadline exceeded", "connection reset", "EOF", "connection refused", "状态 429", "状态 5"} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// parseEntities 从模型输出中提取实体列表，容忍代码块包裹和前后说明文字
func parseEntities(content string) ([]types.EntitySpan, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, ErrInvalidResponse
	}

	var parsed llmEntities
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	spans := make([]types.EntitySpan, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		spans = append(spans, types.EntitySpan{
			Text:  text,
			Label: types.EntityLabel(strings.ToUpper(strings.TrimSpace(e.Label))),
		})
	}
	return spans, nil
}

// extractJSON 取出第一个完整的 JSON 对象
func extractJSON(text string) string {
	if m := jsonBlockRe.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			level++
		case c == '}':
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
