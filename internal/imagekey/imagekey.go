// Package imagekey 实现上传图片对象键的编解码。
//
// 键的文法:
//
//	key       = building "_" room "_" timestamp'
//	timestamp' = 替换后的 UTC 时间串 "2006-01-02 15:04:05.000000+00:00"
//
// 为了文件系统/URL 安全，时间串做了字符替换:
//
//	空格 -> "____"   冒号 -> "___"   加号 -> "__"
//
// building 和 room 不允许包含分隔符 "_"，否则解码会错位。
package imagekey

import (
	"fmt"
	"strings"
	"time"
)

const (
	// 编码时固定输出 6 位微秒
	formatLayout = "2006-01-02 15:04:05.000000-07:00"
	// 解码时允许省略小数部分
	parseLayout = "2006-01-02 15:04:05.999999-07:00"
)

// Key 解码后的对象键
type Key struct {
	BuildingNumber string
	RoomNumber     string
	Timestamp      time.Time
}

// Encode 按 (building, room, ts) 生成对象键
func Encode(building, room string, ts time.Time) (string, error) {
	if building == "" || room == "" {
		return "", fmt.Errorf("building and room are required")
	}
	if strings.Contains(building, "_") {
		return "", fmt.Errorf("building %q must not contain %q", building, "_")
	}
	if strings.Contains(room, "_") {
		return "", fmt.Errorf("room %q must not contain %q", room, "_")
	}

	stamp := ts.UTC().Format(formatLayout)
	stamp = strings.ReplaceAll(stamp, " ", "____")
	stamp = strings.ReplaceAll(stamp, ":", "___")
	stamp = strings.ReplaceAll(stamp, "+", "__")

	return building + "_" + room + "_" + stamp, nil
}

// Decode 解析对象键，失败返回错误（不做任何默认补全）
func Decode(key string) (Key, error) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("invalid image key %q: want building_room_timestamp", key)
	}
	building, room, stamp := parts[0], parts[1], parts[2]
	if building == "" || room == "" || stamp == "" {
		return Key{}, fmt.Errorf("invalid image key %q: empty segment", key)
	}

	// 还原替换，顺序从长到短避免误替换
	stamp = strings.ReplaceAll(stamp, "____", " ")
	stamp = strings.ReplaceAll(stamp, "___", ":")
	stamp = strings.ReplaceAll(stamp, "__", "+")

	ts, err := time.Parse(parseLayout, stamp)
	if err != nil {
		return Key{}, fmt.Errorf("invalid timestamp in image key %q: %w", key, err)
	}

	return Key{
		BuildingNumber: building,
		RoomNumber:     room,
		Timestamp:      ts,
	}, nil
}
