package consumer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/config"
	"github.com/sk4900/capacity-checker/internal/imagekey"
	"github.com/sk4900/capacity-checker/internal/models"
	"github.com/sk4900/capacity-checker/internal/queue"
)

// RoomResolver 按 (room_number, building_number) 解析房间
type RoomResolver interface {
	FindRoomID(ctx context.Context, roomNumber, buildingNumber string) (int64, error)
}

// OccupancyWriter 事务性写入检测记录
type OccupancyWriter interface {
	InsertOccupancy(ctx context.Context, roomID int64, numOccupants int, sourceKey string, recordDate time.Time) (int64, bool, error)
}

// PersistConsumer 入库消费者。
// 消费计数队列，从对象键解析出楼号/房间号，解析到房间后在同一事务里
// 写入记录和关联。找不到房间是硬错误（数据完整性问题），转入死信流；
// 数据库瞬时错误不确认消息，等待重投递。
type PersistConsumer struct {
	config       *config.Config
	queue        *queue.Queue
	rooms        RoomResolver
	records      OccupancyWriter
	consumerName string
	logger       *zap.Logger
}

// NewPersistConsumer 创建入库消费者
func NewPersistConsumer(
	cfg *config.Config,
	q *queue.Queue,
	rooms RoomResolver,
	records OccupancyWriter,
	consumerName string,
	logger *zap.Logger,
) *PersistConsumer {
	return &PersistConsumer{
		config:       cfg,
		queue:        q,
		rooms:        rooms,
		records:      records,
		consumerName: consumerName,
		logger:       logger,
	}
}

// Start 启动消费循环
func (c *PersistConsumer) Start(ctx context.Context) error {
	stream := c.config.Pipeline.Streams.Counts
	group := c.config.Pipeline.WriterGroup

	if err := c.queue.EnsureGroup(ctx, stream, group); err != nil {
		return err
	}

	c.logger.Info("Persist consumer started",
		zap.String("stream", stream),
		zap.String("group", group),
		zap.String("consumer", c.consumerName),
	)

	if err := c.consume(ctx, "0"); err != nil {
		c.logger.Error("Failed to process pending messages", zap.Error(err))
	}

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Persist consumer stopped")
			return nil
		default:
			if err := c.consume(ctx, ">"); err != nil {
				c.logger.Error("Failed to consume count stream",
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
func (c *PersistConsumer) consume(ctx context.Context, id string) error {
	stream := c.config.Pipeline.Streams.Counts
	group := c.config.Pipeline.WriterGroup

	messages, err := c.queue.Read(ctx, stream, group, c.consumerName, id,
		int64(c.config.Pipeline.BatchSize), 5*time.Second)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		parsed, err := models.ParseCountedImageMessage(msg.Values)
		if err != nil {
			if dlErr := c.queue.DeadLetter(ctx, msg, group, err.Error()); dlErr != nil {
				c.logger.Error("Failed to dead-letter message", zap.Error(dlErr))
			}
			continue
		}

		err = c.persist(ctx, parsed)
		switch {
		case err == nil:
			if ackErr := c.queue.Ack(ctx, stream, group, msg.ID); ackErr != nil {
				c.logger.Error("Failed to ack message",
					zap.String("message_id", msg.ID),
					zap.Error(ackErr),
				)
			}
		case isPermanent(err):
			c.logger.Error("Unrecoverable count message",
				zap.String("key", parsed.Key),
				zap.Error(err),
			)
			if dlErr := c.queue.DeadLetter(ctx, msg, group, err.Error()); dlErr != nil {
				c.logger.Error("Failed to dead-letter message", zap.Error(dlErr))
			}
		default:
			// 瞬时失败：不确认，留待重投递
			c.logger.Error("Failed to persist count",
				zap.String("key", parsed.Key),
				zap.Error(err),
			)
		}
	}

	return nil
}

// persist 解析键并写入一条检测记录
func (c *PersistConsumer) persist(ctx context.Context, msg models.CountedImageMessage) error {
	key, err := imagekey.Decode(msg.Key)
	if err != nil {
		return fmt.Errorf("failed to decode image key: %w", err)
	}

	roomID, err := c.rooms.FindRoomID(ctx, key.RoomNumber, key.BuildingNumber)
	if err != nil {
		return fmt.Errorf("failed to resolve room: %w", err)
	}

	recordID, inserted, err := c.records.InsertOccupancy(ctx, roomID, msg.Count, msg.Key, key.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert occupancy: %w", err)
	}

	if !inserted {
		c.logger.Info("Duplicate detection event ignored",
			zap.String("key", msg.Key),
		)
		return nil
	}

	c.logger.Info("Occupancy record persisted",
		zap.Int64("record_id", recordID),
		zap.Int64("room_id", roomID),
		zap.Int("count", msg.Count),
		zap.String("room_number", key.RoomNumber),
		zap.String("building_number", key.BuildingNumber),
	)

	return nil
}

// isPermanent 判断错误是否不可重试（键畸形或房间不存在）
func isPermanent(err error) bool {
	s := err.Error()
	return strings.Contains(s, "invalid image key") ||
		strings.Contains(s, "invalid timestamp") ||
		strings.Contains(s, "room not found")
}
