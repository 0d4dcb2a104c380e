package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 错误分类，写入 span 的 error.type 属性
type ErrorType string

const (
	ErrorTypeHTTP       ErrorType = "http"
	ErrorTypeDB         ErrorType = "db"
	ErrorTypeRedis      ErrorType = "redis"
	ErrorTypeRabbitMQ   ErrorType = "rabbitmq"
	ErrorTypeStorage    ErrorType = "object_storage"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external_system" // 文档解析库、Tika、NER 服务
	ErrorTypeTimeout    ErrorType = "timeout"
)

// RecordError 记录错误，添加统一的错误类型和详情
func RecordError(span trace.Span, err error, errorType ErrorType, attributes ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}

	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	)
	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}
	span.SetStatus(codes.Error, err.Error())
}

// RecordHTTPError 记录HTTP错误，按状态码区分客户端与服务端错误
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}

	category := "unknown"
	switch {
	case statusCode >= 400 && statusCode < 500:
		category = "client_error"
	case statusCode >= 500:
		category = "server_error"
	}

	RecordError(span, err, ErrorTypeHTTP,
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
}

// RecordRabbitMQNack 记录 broker 拒绝确认的消息
func RecordRabbitMQNack(span trace.Span, messageID string, reason string) {
	if span == nil {
		return
	}

	errMsg := "message not acknowledged by broker"
	if reason != "" {
		errMsg = reason
	}

	span.SetAttributes(
		attribute.String("error.type", string(ErrorTypeRabbitMQ)),
		attribute.String("error.message", errMsg),
		attribute.String("messaging.message_id", messageID),
		attribute.String("messaging.error_type", "nack"),
		attribute.Bool("messaging.rabbitmq.confirmed", false),
	)
	span.SetStatus(codes.Error, errMsg)
}

// RecordRabbitMQTimeout 记录等待发布确认超时
func RecordRabbitMQTimeout(span trace.Span, messageID string, timeoutDuration string) {
	if span == nil {
		return
	}

	errMsg := "confirm timeout after " + timeoutDuration
	span.SetAttributes(
		attribute.String("error.type", string(ErrorTypeTimeout)),
		attribute.String("error.message", errMsg),
		attribute.String("messaging.message_id", messageID),
		attribute.String("messaging.error_type", "timeout"),
		attribute.Bool("messaging.rabbitmq.confirmed", false),
	)
	span.SetStatus(codes.Error, errMsg)
}
