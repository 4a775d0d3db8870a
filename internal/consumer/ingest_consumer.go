package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/config"
	"github.com/sk4900/capacity-checker/internal/models"
	"github.com/sk4900/capacity-checker/internal/mqtt"
	"github.com/sk4900/capacity-checker/internal/queue"
)

// ObjectCreatedEvent 对象存储的创建事件负载
type ObjectCreatedEvent struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// IngestConsumer 图片入库触发器。
// 订阅存储创建事件，把对象键原样入队（不做任何转换）。
// 入队失败时向上返回错误，由 broker 重投递；下游按至少一次语义容忍重复。
type IngestConsumer struct {
	config     *config.Config
	mqttClient *mqtt.Client
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewIngestConsumer 创建入库触发器
func NewIngestConsumer(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	q *queue.Queue,
	logger *zap.Logger,
) *IngestConsumer {
	return &IngestConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		queue:      q,
		logger:     logger,
	}
}

// Start 启动触发器
func (c *IngestConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.Pipeline.IngestTopic, c.config.MQTT.QoS, c.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to ingest topic: %w", err)
	}

	c.logger.Info("Ingest consumer started",
		zap.String("topic", c.config.Pipeline.IngestTopic),
	)

	<-ctx.Done()
	return nil
}

// Stop 停止触发器
func (c *IngestConsumer) Stop() error {
	if err := c.mqttClient.Unsubscribe(c.config.Pipeline.IngestTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("Ingest consumer stopped")
	return nil
}

// handleEvent 处理一条对象创建事件
func (c *IngestConsumer) handleEvent(topic string, payload []byte) error {
	c.logger.Debug("Received storage event",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	var event ObjectCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// 畸形事件重投递也不会变好，记入死信流后吞掉
		c.deadLetterEvent(topic, payload, err.Error())
		return nil
	}
	if event.Key == "" {
		c.deadLetterEvent(topic, payload, "storage event has no object key")
		return nil
	}

	msg := models.ImageKeyMessage{
		Key:     event.Key,
		GroupID: models.ImageGroupID,
	}

	streamID, err := c.queue.PublishImageKey(context.Background(), c.config.Pipeline.Streams.Images, msg)
	if err != nil {
		return fmt.Errorf("failed to enqueue image key: %w", err)
	}

	c.logger.Info("Image key enqueued",
		zap.String("key", event.Key),
		zap.String("stream_id", streamID),
	)

	return nil
}

// deadLetterEvent 把无法解析的存储事件复制到死信流
func (c *IngestConsumer) deadLetterEvent(topic string, payload []byte, reason string) {
	_, err := c.queue.Publish(context.Background(), c.config.Pipeline.Streams.DeadLetter, map[string]interface{}{
		"source_stream": "mqtt:" + topic,
		"reason":        reason,
		"payload_raw":   string(payload),
	})
	if err != nil {
		c.logger.Error("Failed to dead-letter storage event",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	c.logger.Warn("Malformed storage event moved to dead letter stream",
		zap.String("topic", topic),
		zap.String("reason", reason),
	)
}
