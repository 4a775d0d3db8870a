package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/models"
)

// Message 从 Stream 读到的一条消息
type Message struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// Queue Redis Streams 队列封装
// 同一消费者组内消息按提交顺序投递，对应 FIFO 分组语义
type Queue struct {
	client     *redis.Client
	deadLetter string
	logger     *zap.Logger
}

// New 创建队列封装
func New(client *redis.Client, deadLetter string, logger *zap.Logger) *Queue {
	return &Queue{
		client:     client,
		deadLetter: deadLetter,
		logger:     logger,
	}
}

// PublishImageKey 发布图片消息
func (q *Queue) PublishImageKey(ctx context.Context, stream string, msg models.ImageKeyMessage) (string, error) {
	return q.Publish(ctx, stream, msg.Fields())
}

// PublishCountedImage 发布计数消息
func (q *Queue) PublishCountedImage(ctx context.Context, stream string, msg models.CountedImageMessage) (string, error) {
	return q.Publish(ctx, stream, msg.Fields())
}

// Publish 发布任意属性集合
func (q *Queue) Publish(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return id, nil
}

// EnsureGroup 创建消费者组（已存在时忽略）
func (q *Queue) EnsureGroup(ctx context.Context, stream, group string) error {
	err := q.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

// Read 读取新消息。id 一般为 ">"；传 "0" 可取回本消费者未确认的消息
func (q *Queue) Read(ctx context.Context, stream, group, consumer, id string, count int64, block time.Duration) ([]Message, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream %s: %w", stream, err)
	}

	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, Message{
				Stream: s.Stream,
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}
	return messages, nil
}

// Ack 确认消息已处理
func (q *Queue) Ack(ctx context.Context, stream, group, id string) error {
	if err := q.client.XAck(ctx, stream, group, id).Err(); err != nil {
		return fmt.Errorf("failed to ack message %s on %s: %w", id, stream, err)
	}
	return nil
}

// DeadLetter 把无法处理的消息复制到死信流并确认原消息
func (q *Queue) DeadLetter(ctx context.Context, msg Message, group, reason string) error {
	values := map[string]interface{}{
		"source_stream": msg.Stream,
		"source_id":     msg.ID,
		"reason":        reason,
	}
	for k, v := range msg.Values {
		values["payload_"+k] = v
	}

	if _, err := q.Publish(ctx, q.deadLetter, values); err != nil {
		return err
	}

	q.logger.Warn("Message moved to dead letter stream",
		zap.String("source_stream", msg.Stream),
		zap.String("source_id", msg.ID),
		zap.String("reason", reason),
	)

	return q.Ack(ctx, msg.Stream, group, msg.ID)
}
