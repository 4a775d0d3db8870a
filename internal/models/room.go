package models

import "time"

// Room 被监控的房间
type Room struct {
	ID             int64
	RoomNumber     string
	BuildingNumber string
	MaxCapacity    int
	Alert          bool // true 表示当前处于超限状态
}

// Admin 房间管理员（通知联系人）
type Admin struct {
	ID         int64
	FirstName  string
	LastName   string
	Department string
	Phone      string
	Email      string
}

// OccupancyRecord 一次人数检测记录（只追加，不修改）
type OccupancyRecord struct {
	ID           int64
	RecordDate   time.Time
	NumOccupants int
	SourceKey    string // 去重键：来源图片的对象键
}

// RoomOccupancy 某房间最新一条检测记录的评估视图
// （DISTINCT ON 查询结果，一房间一行）
type RoomOccupancy struct {
	RoomID         int64
	RoomNumber     string
	BuildingNumber string
	MaxCapacity    int
	Alert          bool
	AdminPhone     string // 关联管理员号码，无关联时为空
	NumOccupants   int
	RecordDate     time.Time
}

// RoomStatus 对外暴露的房间状态（HTTP API 响应元素）
type RoomStatus struct {
	RoomNumber     string `json:"room_number"`
	BuildingNumber string `json:"building_number"`
	MaxCapacity    int    `json:"max_capacity"`
	CurrCapacity   int    `json:"curr_capacity"`
	Status         string `json:"status"`
}
