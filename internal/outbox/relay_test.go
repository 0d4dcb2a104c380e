package outbox

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-extractor/internal/storage/models"
)

// MockPublisher 记录发布的消息
type MockPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (m *MockPublisher) PublishRaw(ctx context.Context, exchange, routingKey, messageID string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, messageID)
	return nil
}

func TestNewMessageRelay_Options(t *testing.T) {
	r := NewMessageRelay(nil, &MockPublisher{},
		WithPollingInterval(time.Second),
		WithBatchSize(50),
		WithMaxRetries(3),
		WithBatchSize(-1),
	)
	assert.Equal(t, time.Second, r.pollingInterval)
	assert.Equal(t, 50, r.batchSize)
	assert.Equal(t, 3, r.maxRetries)
}

func TestMessageRelay_StopIsIdempotent(t *testing.T) {
	r := NewMessageRelay(nil, &MockPublisher{}, WithPollingInterval(time.Hour))
	r.Start()
	r.Stop()
	r.Stop()
}

// newTestDB 需要设置 TEST_MYSQL_DSN 才会运行
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("未设置 TEST_MYSQL_DSN，跳过MySQL集成测试")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.OutboxMessage{}))
	require.NoError(t, db.Exec("DELETE FROM outbox_messages").Error)
	return db
}

func TestMessageRelay_ProcessPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"u-1", "u-2"} {
		msg, err := models.NewOutboxMessage(id, models.EventTypeResumeParsed, "ex", "rk", map[string]string{"id": id})
		require.NoError(t, err)
		require.NoError(t, db.Create(msg).Error)
	}

	pub := &MockPublisher{}
	r := NewMessageRelay(db, pub)
	n, err := r.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"u-1", "u-2"}, pub.published)

	var sent int64
	require.NoError(t, db.Model(&models.OutboxMessage{}).Where("status = ?", models.OutboxStatusSent).Count(&sent).Error)
	assert.Equal(t, int64(2), sent)

	n, err = r.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "已发送的消息不再处理")
}

func TestMessageRelay_ProcessPending_PublishFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	msg, err := models.NewOutboxMessage("u-3", models.EventTypeResumeParsed, "ex", "rk", map[string]string{})
	require.NoError(t, err)
	require.NoError(t, db.Create(msg).Error)

	r := NewMessageRelay(db, &MockPublisher{err: errors.New("broker down")}, WithMaxRetries(1))
	_, err = r.ProcessPending(ctx)
	require.NoError(t, err)

	var got models.OutboxMessage
	require.NoError(t, db.First(&got, msg.ID).Error)
	assert.Equal(t, models.OutboxStatusFailed, got.Status)
	assert.Equal(t, "broker down", got.ErrorMessage)
}
