package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 事务性短信标记，区别于营销短信
const smsTypeTransactional = "Transactional"

// SMSRequest 发送短信请求
type SMSRequest struct {
	MessageID string `json:"message_id"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	SMSType   string `json:"sms_type"`
}

// SMSClient 短信通知服务客户端
type SMSClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewSMSClient 创建短信客户端
func NewSMSClient(baseURL string, logger *zap.Logger) *SMSClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &SMSClient{
		httpClient: client,
		logger:     logger,
	}
}

// SendSMS 发送一条事务性短信
func (c *SMSClient) SendSMS(ctx context.Context, phone, message string) error {
	if phone == "" {
		return fmt.Errorf("phone is required")
	}
	if message == "" {
		return fmt.Errorf("message is required")
	}

	req := SMSRequest{
		MessageID: uuid.New().String(),
		Phone:     phone,
		Message:   message,
		SMSType:   smsTypeTransactional,
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		Post("/v1/sms")

	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms service returned status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("SMS sent",
		zap.String("message_id", req.MessageID),
		zap.String("phone", phone),
	)

	return nil
}
