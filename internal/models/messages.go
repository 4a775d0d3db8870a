package models

import (
	"fmt"
	"strconv"
)

// 队列消息的固定分组。同组消息按提交顺序投递并逐条处理。
const (
	ImageGroupID = "images"
	CountGroupID = "counts"
)

// ImageKeyMessage 图片队列消息（存储触发 → 检测）
type ImageKeyMessage struct {
	Key     string // 对象键，格式见 imagekey 包
	GroupID string
}

// Fields 序列化为 Stream 字段
func (m ImageKeyMessage) Fields() map[string]interface{} {
	return map[string]interface{}{
		"key":      m.Key,
		"group_id": m.GroupID,
	}
}

// ParseImageKeyMessage 解析并校验图片队列消息
func ParseImageKeyMessage(values map[string]interface{}) (ImageKeyMessage, error) {
	key, err := stringField(values, "key")
	if err != nil {
		return ImageKeyMessage{}, err
	}
	groupID, err := stringField(values, "group_id")
	if err != nil {
		return ImageKeyMessage{}, err
	}
	return ImageKeyMessage{Key: key, GroupID: groupID}, nil
}

// CountedImageMessage 计数队列消息（检测 → 入库）
// Count 在线上以字符串属性传输
type CountedImageMessage struct {
	Key     string
	Count   int // 检测到的人数，非负
	GroupID string
}

// Fields 序列化为 Stream 字段
func (m CountedImageMessage) Fields() map[string]interface{} {
	return map[string]interface{}{
		"key":      m.Key,
		"count":    strconv.Itoa(m.Count),
		"group_id": m.GroupID,
	}
}

// ParseCountedImageMessage 解析并校验计数队列消息
func ParseCountedImageMessage(values map[string]interface{}) (CountedImageMessage, error) {
	key, err := stringField(values, "key")
	if err != nil {
		return CountedImageMessage{}, err
	}
	countStr, err := stringField(values, "count")
	if err != nil {
		return CountedImageMessage{}, err
	}
	count, err := strconv.Atoi(countStr)
	if err != nil {
		return CountedImageMessage{}, fmt.Errorf("invalid count %q: %w", countStr, err)
	}
	if count < 0 {
		return CountedImageMessage{}, fmt.Errorf("count must be non-negative, got %d", count)
	}
	groupID, err := stringField(values, "group_id")
	if err != nil {
		return CountedImageMessage{}, err
	}
	return CountedImageMessage{Key: key, Count: count, GroupID: groupID}, nil
}

func stringField(values map[string]interface{}, name string) (string, error) {
	raw, ok := values[name]
	if !ok {
		return "", fmt.Errorf("missing field %q", name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", name)
	}
	if s == "" {
		return "", fmt.Errorf("field %q is empty", name)
	}
	return s, nil
}
