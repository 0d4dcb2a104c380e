package outbox // 发件箱模式：解析记录与事件同事务落库，由中继异步投递到 RabbitMQ

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resume-extractor/internal/logger"
	"resume-extractor/internal/storage"
	"resume-extractor/internal/storage/models"
	"resume-extractor/internal/tracing"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	defaultMaxRetries      = 5
)

// Publisher 投递已序列化的消息
type Publisher interface {
	PublishRaw(ctx context.Context, exchange, routingKey, messageID string, body []byte) error
}

var _ Publisher = (*storage.RabbitMQ)(nil)

// MessageRelay 轮询 outbox_messages 表并发布待发送的消息
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	log             zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	tracer          trace.Tracer
	now             func() time.Time

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// Option 中继选项
type Option func(*MessageRelay)

// WithPollingInterval 设置轮询间隔
func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 设置每批处理的消息数
func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMaxRetries 设置标记为 FAILED 前的最大发布次数
func WithMaxRetries(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// NewMessageRelay 创建中继
func NewMessageRelay(db *gorm.DB, publisher Publisher, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		log:             logger.Component("outbox_relay"),
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		maxRetries:      defaultMaxRetries,
		tracer:          otel.Tracer("outbox-relay"),
		now:             time.Now,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 在后台开始轮询
func (r *MessageRelay) Start() {
	r.log.Info().Dur("interval", r.pollingInterval).Msg("发件箱中继启动")
	ticker := time.NewTicker(r.pollingInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				if _, err := r.ProcessPending(context.Background()); err != nil {
					r.log.Error().Err(err).Msg("处理发件箱消息失败")
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束，可重复调用
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
	r.log.Info().Msg("发件箱中继已停止")
}

// ProcessPending 处理一批 PENDING 消息，返回本批处理的条数。
// 行锁使用 SKIP LOCKED，多实例并行时不会重复发布。
func (r *MessageRelay) ProcessPending(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, err
	}

	// 空轮询不创建 span
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		pubErr := r.publisher.PublishRaw(ctx, msg.TargetExchange, msg.TargetRoutingKey, msg.AggregateID, []byte(msg.Payload))
		msg.MarkPublished(pubErr, r.now(), r.maxRetries)
		if pubErr != nil {
			r.log.Warn().Err(pubErr).
				Uint64("outbox_id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retry_count", msg.RetryCount).
				Msg("发布发件箱消息失败")
		}

		if err := tx.Save(msg).Error; err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return 0, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return 0, err
	}
	r.log.Debug().Int("count", len(messages)).Msg("发件箱批次处理完成")
	return len(messages), nil
}
