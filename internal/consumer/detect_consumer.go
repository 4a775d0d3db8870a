package consumer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/config"
	"github.com/sk4900/capacity-checker/internal/models"
	"github.com/sk4900/capacity-checker/internal/queue"
)

// PersonCounter 人数识别能力（不透明的外部服务）
type PersonCounter interface {
	CountPersons(ctx context.Context, bucket, key string) (int, error)
}

// ObjectDeleter 对象删除能力
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, bucket, key string) error
}

// DetectConsumer 人数检测消费者。
// 消费图片队列，调用识别服务计数，把 (键, 人数) 转发到计数队列，
// 然后删除源图片。检测到 0 人同样转发，不提前退出。
type DetectConsumer struct {
	config       *config.Config
	queue        *queue.Queue
	counter      PersonCounter
	storage      ObjectDeleter
	consumerName string
	logger       *zap.Logger
}

// NewDetectConsumer 创建检测消费者
func NewDetectConsumer(
	cfg *config.Config,
	q *queue.Queue,
	counter PersonCounter,
	storage ObjectDeleter,
	consumerName string,
	logger *zap.Logger,
) *DetectConsumer {
	return &DetectConsumer{
		config:       cfg,
		queue:        q,
		counter:      counter,
		storage:      storage,
		consumerName: consumerName,
		logger:       logger,
	}
}

// Start 启动消费循环
func (c *DetectConsumer) Start(ctx context.Context) error {
	stream := c.config.Pipeline.Streams.Images
	group := c.config.Pipeline.DetectorGroup

	if err := c.queue.EnsureGroup(ctx, stream, group); err != nil {
		return err
	}

	c.logger.Info("Detect consumer started",
		zap.String("stream", stream),
		zap.String("group", group),
		zap.String("consumer", c.consumerName),
	)

	// 先处理上次崩溃遗留的未确认消息
	if err := c.consume(ctx, "0"); err != nil {
		c.logger.Error("Failed to process pending messages", zap.Error(err))
	}

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Detect consumer stopped")
			return nil
		default:
			if err := c.consume(ctx, ">"); err != nil {
				c.logger.Error("Failed to consume image stream",
					zap.Error(err),
					zap.Duration("backoff", backoff),
				)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
					backoff *= 2
					if backoff > maxBackoff {
						backoff = maxBackoff
					}
				}
			} else {
				backoff = time.Second
			}
		}
	}
}

// consume 读取并处理一批消息
func (c *DetectConsumer) consume(ctx context.Context, id string) error {
	stream := c.config.Pipeline.Streams.Images
	group := c.config.Pipeline.DetectorGroup

	messages, err := c.queue.Read(ctx, stream, group, c.consumerName, id,
		int64(c.config.Pipeline.BatchSize), 5*time.Second)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		parsed, err := models.ParseImageKeyMessage(msg.Values)
		if err != nil {
			// 畸形消息不可重试，转入死信流
			if dlErr := c.queue.DeadLetter(ctx, msg, group, err.Error()); dlErr != nil {
				c.logger.Error("Failed to dead-letter message", zap.Error(dlErr))
			}
			continue
		}

		if err := c.processImage(ctx, parsed); err != nil {
			// 瞬时失败：不确认，留待重投递
			c.logger.Error("Failed to process image",
				zap.String("key", parsed.Key),
				zap.Error(err),
			)
			continue
		}

		if err := c.queue.Ack(ctx, stream, group, msg.ID); err != nil {
			c.logger.Error("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processImage 对单张图片计数并转发
func (c *DetectConsumer) processImage(ctx context.Context, msg models.ImageKeyMessage) error {
	bucket := c.config.Storage.Bucket

	count, err := c.counter.CountPersons(ctx, bucket, msg.Key)
	if err != nil {
		return fmt.Errorf("failed to count persons: %w", err)
	}

	counted := models.CountedImageMessage{
		Key:     msg.Key,
		Count:   count,
		GroupID: models.CountGroupID,
	}
	if _, err := c.queue.PublishCountedImage(ctx, c.config.Pipeline.Streams.Counts, counted); err != nil {
		return fmt.Errorf("failed to forward count: %w", err)
	}

	// 转发后删除源图片。删除失败只告警：转发已经发生，重投递会重复检测，
	// 由入库侧的去重键兜底。
	if err := c.storage.DeleteObject(ctx, bucket, msg.Key); err != nil {
		c.logger.Warn("Failed to delete source image",
			zap.String("bucket", bucket),
			zap.String("key", msg.Key),
			zap.Error(err),
		)
	}

	c.logger.Info("Image processed",
		zap.String("key", msg.Key),
		zap.Int("count", count),
	)

	return nil
}
