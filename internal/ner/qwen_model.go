package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"resume-extractor/internal/logger"
	"resume-extractor/internal/tracing"
)

const (
	// DashScope 的 OpenAI 兼容接口
	defaultQwenBaseURL   = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultQwenModelName = "qwen-turbo"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float32        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// QwenChatModel 通义千问 OpenAI 兼容接口的 eino 聊天模型
type QwenChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewQwenChatModel 创建千问模型。baseURL 为空时使用 DashScope 兼容地址
func NewQwenChatModel(apiKey, modelName, baseURL string, timeout time.Duration) (*QwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultQwenModelName
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultQwenBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &QwenChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     strings.TrimRight(baseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Component("qwen_model"),
	}, nil
}

// Generate 实现 model.BaseChatModel
func (q *QwenChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	req := chatCompletionRequest{
		Model:       q.modelName,
		Messages:    make([]openAIMessage, 0, len(messages)),
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
	}
	if options.Model != nil && *options.Model != "" {
		req.Model = *options.Model
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+q.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := q.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	q.log.Debug().
		Str("model", req.Model).
		Int("status", httpResp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("千问接口返回")

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, tracing.TruncateString(string(respBody), tracing.DefaultMaxLength))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("API 返回空的 choices")
	}

	choice := resp.Choices[0].Message
	out := &schema.Message{Role: schema.Assistant}
	if choice.Role != "" {
		out.Role = schema.RoleType(choice.Role)
	}
	if choice.Content != nil {
		out.Content = *choice.Content
	}
	return out, nil
}

// Stream 实体识别只需要一次性结果，不支持流式
func (q *QwenChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("QwenChatModel 不支持 Stream")
}

var _ model.BaseChatModel = (*QwenChatModel)(nil)
