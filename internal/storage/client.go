package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client 对象存储客户端（S3 兼容 REST 接口）。
// 管道只需要两个操作：上传脚本的 PUT 和检测完成后的 DELETE。
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建对象存储客户端
func NewClient(baseURL string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// PutObject 上传对象
func (c *Client) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if bucket == "" || key == "" {
		return fmt.Errorf("bucket and key are required")
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Put(fmt.Sprintf("/%s/%s", bucket, key))

	if err != nil {
		return fmt.Errorf("put object failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("put object returned status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Debug("Object uploaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)

	return nil
}

// DeleteObject 删除对象
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	if bucket == "" || key == "" {
		return fmt.Errorf("bucket and key are required")
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/%s/%s", bucket, key))

	if err != nil {
		return fmt.Errorf("delete object failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("delete object returned status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Debug("Object deleted",
		zap.String("bucket", bucket),
		zap.String("key", key),
	)

	return nil
}
