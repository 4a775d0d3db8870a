package evaluator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/models"
)

// 状态档位
const (
	StatusGreen  = "green"
	StatusYellow = "yellow"
	StatusRed    = "red"
)

// 通知文案。red 路径每次评估都发送；green/yellow 只在清除标志位时发送。
const (
	EscalationMessage   = "Guidelines have been violated RED STATUS"
	DeescalationMessage = "Status has dropped from Red"
)

// StatusSource 提供每个房间最新一条检测记录
type StatusSource interface {
	LatestRoomOccupancies(ctx context.Context) ([]models.RoomOccupancy, error)
}

// AlertStore 条件更新房间报警标志
type AlertStore interface {
	SetAlert(ctx context.Context, roomID int64, expected, value bool) (bool, error)
}

// Notifier 发送短信通知
type Notifier interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// Evaluator 容量阈值评估器。
// 每次调用对所有有历史记录的房间各评估一次，按档位变迁发送通知并翻转
// 报警标志。数据库错误直接返回，不会伪装成功。
type Evaluator struct {
	source        StatusSource
	alerts        AlertStore
	notifier      Notifier
	fallbackPhone string
	logger        *zap.Logger
}

// New 创建评估器
func New(source StatusSource, alerts AlertStore, notifier Notifier, fallbackPhone string, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		source:        source,
		alerts:        alerts,
		notifier:      notifier,
		fallbackPhone: fallbackPhone,
		logger:        logger,
	}
}

// ClassifyStatus 按占用率分档。result = occupants/capacity*100，
// 边界值 33 和 67 归入下方档位。
func ClassifyStatus(numOccupants, maxCapacity int) string {
	result := float64(numOccupants) / float64(maxCapacity) * 100
	switch {
	case result <= 33:
		return StatusGreen
	case result <= 67:
		return StatusYellow
	default:
		return StatusRed
	}
}

// Evaluate 评估所有房间，返回全部房间的状态
func (e *Evaluator) Evaluate(ctx context.Context) ([]models.RoomStatus, error) {
	occupancies, err := e.source.LatestRoomOccupancies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load room occupancies: %w", err)
	}

	statuses := make([]models.RoomStatus, 0, len(occupancies))
	for _, occ := range occupancies {
		status := e.evaluateRoom(ctx, occ)
		statuses = append(statuses, models.RoomStatus{
			RoomNumber:     occ.RoomNumber,
			BuildingNumber: occ.BuildingNumber,
			MaxCapacity:    occ.MaxCapacity,
			CurrCapacity:   occ.NumOccupants,
			Status:         status,
		})
	}

	return statuses, nil
}

// evaluateRoom 评估单个房间并执行变迁动作。
// 注意不对称性：red 无条件置位并通知兜底号码；green/yellow 只有在
// 标志位已置时才清除，green 通知兜底号码，yellow 通知房间管理员。
func (e *Evaluator) evaluateRoom(ctx context.Context, occ models.RoomOccupancy) string {
	status := ClassifyStatus(occ.NumOccupants, occ.MaxCapacity)

	switch status {
	case StatusGreen:
		if occ.Alert {
			if e.clearAlert(ctx, occ) {
				e.notify(ctx, occ, e.fallbackPhone, DeescalationMessage)
			}
		}
	case StatusYellow:
		if occ.Alert {
			if e.clearAlert(ctx, occ) {
				phone := occ.AdminPhone
				if phone == "" {
					// 房间没有关联管理员时退回兜底号码
					e.logger.Warn("Room has no admin phone, using fallback",
						zap.String("room_number", occ.RoomNumber),
						zap.String("building_number", occ.BuildingNumber),
					)
					phone = e.fallbackPhone
				}
				e.notify(ctx, occ, phone, DeescalationMessage)
			}
		}
	case StatusRed:
		// red 每次都置位（即使已置）并发送升级通知
		swapped, err := e.alerts.SetAlert(ctx, occ.RoomID, occ.Alert, true)
		if err != nil {
			e.logger.Error("Failed to set alert flag",
				zap.Int64("room_id", occ.RoomID),
				zap.Error(err),
			)
		} else if !swapped && !occ.Alert {
			e.logger.Warn("Alert flag changed concurrently",
				zap.Int64("room_id", occ.RoomID),
			)
		}
		e.notify(ctx, occ, e.fallbackPhone, EscalationMessage)
	}

	e.logger.Info("Room evaluated",
		zap.String("room_number", occ.RoomNumber),
		zap.String("building_number", occ.BuildingNumber),
		zap.Int("num_occupants", occ.NumOccupants),
		zap.Int("max_capacity", occ.MaxCapacity),
		zap.String("status", status),
	)

	return status
}

// clearAlert 清除标志位，返回是否由本次评估完成清除
// （CAS 失败说明并发评估已经降级过，不重复通知）
func (e *Evaluator) clearAlert(ctx context.Context, occ models.RoomOccupancy) bool {
	swapped, err := e.alerts.SetAlert(ctx, occ.RoomID, true, false)
	if err != nil {
		e.logger.Error("Failed to clear alert flag",
			zap.Int64("room_id", occ.RoomID),
			zap.Error(err),
		)
		return false
	}
	return swapped
}

func (e *Evaluator) notify(ctx context.Context, occ models.RoomOccupancy, phone, message string) {
	if err := e.notifier.SendSMS(ctx, phone, message); err != nil {
		e.logger.Error("Failed to send notification",
			zap.String("room_number", occ.RoomNumber),
			zap.String("building_number", occ.BuildingNumber),
			zap.Error(err),
		)
	}
}
