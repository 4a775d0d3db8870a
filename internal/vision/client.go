package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DetectRequest 标签识别请求
type DetectRequest struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	MaxLabels int    `json:"max_labels"`
}

// Label 一个识别出的标签及其实例
type Label struct {
	Name      string          `json:"name"`
	Instances []LabelInstance `json:"instances"`
}

// LabelInstance 标签的一个实例（边界框等细节对计数无关紧要）
type LabelInstance struct {
	Confidence float64 `json:"confidence"`
}

// DetectResponse 标签识别响应
type DetectResponse struct {
	Labels []Label `json:"labels"`
}

// Client 人数识别服务客户端。
// 识别能力是不透明的外部服务：图片在对象存储里，按 bucket+key 引用。
type Client struct {
	httpClient *resty.Client
	maxLabels  int
	logger     *zap.Logger
}

// NewClient 创建识别服务客户端
func NewClient(baseURL string, maxLabels int, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		maxLabels:  maxLabels,
		logger:     logger,
	}
}

// CountPersons 统计图片中检测到的人数：
// 对所有名为 "Person" 的标签实例求和。没有检测到人时返回 0。
func (c *Client) CountPersons(ctx context.Context, bucket, key string) (int, error) {
	if bucket == "" || key == "" {
		return 0, fmt.Errorf("bucket and key are required")
	}

	var result DetectResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(DetectRequest{Bucket: bucket, Key: key, MaxLabels: c.maxLabels}).
		SetResult(&result).
		Post("/v1/detect-labels")

	if err != nil {
		return 0, fmt.Errorf("detect labels request failed: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("detect labels returned status %d: %s", resp.StatusCode(), resp.String())
	}

	sum := 0
	for _, label := range result.Labels {
		if label.Name == "Person" {
			sum += len(label.Instances)
		}
	}

	c.logger.Debug("Persons counted",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("count", sum),
	)

	return sum, nil
}
