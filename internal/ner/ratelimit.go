package ner

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// tokenBucket 令牌桶限流
type tokenBucket struct {
	mu       sync.Mutex
	rate     float64 // 每秒令牌数
	capacity float64
	tokens   float64
	last     time.Time
	now      func() time.Time
}

// newTokenBucket 按每分钟请求数创建，容量为 qpm 的一半，至少为 1
func newTokenBucket(qpm int) *tokenBucket {
	capacity := float64(qpm / 2)
	if capacity < 1 {
		capacity = 1
	}
	return &tokenBucket{
		rate:     float64(qpm) / 60.0,
		capacity: capacity,
		tokens:   capacity,
		last:     time.Now(),
		now:      time.Now,
	}
}

func (tb *tokenBucket) refill() {
	now := tb.now()
	tb.tokens += now.Sub(tb.last).Seconds() * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = now
}

// Wait 阻塞到拿到一个令牌或 ctx 结束
func (tb *tokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RateLimitedChatModel 对聊天模型调用限流的代理
type RateLimitedChatModel struct {
	original model.BaseChatModel
	limiter  *tokenBucket
}

// NewRateLimitedChatModel qpm 为每分钟允许的调用次数
func NewRateLimitedChatModel(original model.BaseChatModel, qpm int) *RateLimitedChatModel {
	return &RateLimitedChatModel{original: original, limiter: newTokenBucket(qpm)}
}

// Generate 等待令牌后调用底层模型
func (rl *RateLimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := rl.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Generate(ctx, messages, opts...)
}

// Stream 等待令牌后调用底层模型
func (rl *RateLimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := rl.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Stream(ctx, messages, opts...)
}

var _ model.BaseChatModel = (*RateLimitedChatModel)(nil)
