package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resume-extractor/internal/config"
	"resume-extractor/internal/logger"
	"resume-extractor/internal/tracing"
)

var rabbitTracer = otel.Tracer("resume-extractor/storage/rabbitmq")

// confirmTimeout 等待 broker 发布确认的最长时间
const confirmTimeout = 5 * time.Second

// ErrPublishNacked broker 拒绝了消息
var ErrPublishNacked = errors.New("message nacked by broker")

// RabbitMQ 发布解析完成事件
type RabbitMQ struct {
	conn        *amqp.Connection
	channelPool sync.Pool
	exchangeMu  sync.Mutex
	exchangeMap map[string]bool // 记录已声明的exchange
	cfg         *config.RabbitMQConfig
	log         zerolog.Logger
}

// NewRabbitMQ 连接RabbitMQ并声明事件交换机
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	mq := &RabbitMQ{
		conn:        conn,
		exchangeMap: make(map[string]bool),
		cfg:         cfg,
		log:         logger.Component("rabbitmq"),
	}
	mq.channelPool = sync.Pool{
		New: func() any {
			ch, err := mq.openConfirmChannel()
			if err != nil {
				mq.log.Error().Err(err).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	if err := mq.EnsureExchange(cfg.Exchange, amqp.ExchangeTopic, true); err != nil {
		conn.Close()
		return nil, err
	}

	mq.log.Info().Str("exchange", cfg.Exchange).Msg("成功连接到RabbitMQ服务器")
	return mq, nil
}

// openConfirmChannel 打开一个启用发布确认的通道
func (r *RabbitMQ) openConfirmChannel() (*amqp.Channel, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("开启发布确认失败: %w", err)
	}
	return ch, nil
}

// getChannel 获取可用通道，已关闭的通道会被丢弃
func (r *RabbitMQ) getChannel() (*amqp.Channel, error) {
	if v, ok := r.channelPool.Get().(*amqp.Channel); ok && v != nil && !v.IsClosed() {
		return v, nil
	}
	return r.openConfirmChannel()
}

// putChannel 归还通道到池
func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// EnsureExchange 确保exchange存在
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	if exchangeName == "amq.default" || exchangeName == "default" {
		return fmt.Errorf("不能声明默认交换机 '%s'", exchangeName)
	}

	r.exchangeMu.Lock()
	defer r.exchangeMu.Unlock()
	if r.exchangeMap[exchangeName] {
		return nil
	}

	ch, err := r.getChannel()
	if err != nil {
		return fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}
	defer r.putChannel(ch)

	if err := ch.ExchangeDeclare(exchangeName, exchangeType, durable, false, false, false, nil); err != nil {
		return fmt.Errorf("声明exchange失败: %w", err)
	}
	r.exchangeMap[exchangeName] = true
	return nil
}

// amqpHeaderCarrier 把 trace 上下文写入消息头
type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c amqpHeaderCarrier) Set(key, value string) { c[key] = value }

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

var _ propagation.TextMapCarrier = amqpHeaderCarrier{}

// PublishJSON 序列化后发布
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey, messageID string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	return r.PublishRaw(ctx, exchangeName, routingKey, messageID, body)
}

// PublishRaw 发布已序列化的 JSON 消息并等待 broker 确认
func (r *RabbitMQ) PublishRaw(ctx context.Context, exchangeName, routingKey, messageID string, body []byte) error {
	ctx, span := rabbitTracer.Start(ctx, "RabbitMQ.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", exchangeName),
			attribute.String("messaging.rabbitmq.destination.routing_key", routingKey),
			attribute.String("messaging.message_id", messageID),
		))
	defer span.End()

	ch, err := r.getChannel()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}
	defer r.putChannel(ch)

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, amqpHeaderCarrier(headers))

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    messageID,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("发布消息失败: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		tracing.RecordRabbitMQTimeout(span, messageID, confirmTimeout.String())
		return fmt.Errorf("等待发布确认失败: %w", err)
	}
	if !acked {
		tracing.RecordRabbitMQNack(span, messageID, "")
		return ErrPublishNacked
	}
	return nil
}

// ParsedEventTarget 解析完成事件的交换机和路由键
func (r *RabbitMQ) ParsedEventTarget() (exchange, routingKey string) {
	return r.cfg.Exchange, r.cfg.ParsedRoutingKey
}

// PublishResumeParsed 发布简历解析完成事件
func (r *RabbitMQ) PublishResumeParsed(ctx context.Context, msg ResumeParsedMessage) error {
	return r.PublishJSON(ctx, r.cfg.Exchange, r.cfg.ParsedRoutingKey, msg.SubmissionUUID, msg)
}
