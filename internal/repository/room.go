package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/models"
)

// RoomRepository 房间仓库
type RoomRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoomRepository 创建房间仓库
func NewRoomRepository(db *sql.DB, logger *zap.Logger) *RoomRepository {
	return &RoomRepository{
		db:     db,
		logger: logger,
	}
}

// FindRoomID 根据 (room_number, building_number) 查找房间
// 找不到是硬错误，不做任何默认补全
func (r *RoomRepository) FindRoomID(ctx context.Context, roomNumber, buildingNumber string) (int64, error) {
	if roomNumber == "" {
		return 0, fmt.Errorf("room_number is required")
	}
	if buildingNumber == "" {
		return 0, fmt.Errorf("building_number is required")
	}

	query := `
		SELECT id FROM rooms
		WHERE room_number = $1 AND building_number = $2
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, roomNumber, buildingNumber).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("room not found: room_number=%s, building_number=%s", roomNumber, buildingNumber)
		}
		return 0, fmt.Errorf("failed to query room: %w", err)
	}

	return id, nil
}

// LatestRoomOccupancies 读取每个房间最新一条检测记录（一房间一行）
// 只返回有历史记录的房间；管理员号码通过关联表取得，可能为空
func (r *RoomRepository) LatestRoomOccupancies(ctx context.Context) ([]models.RoomOccupancy, error) {
	query := `
		SELECT DISTINCT ON (r.id)
			r.id,
			r.room_number,
			r.building_number,
			r.max_capacity,
			r.alert,
			COALESCE(a.phone, ''),
			rec.num_occupants,
			rec.record_date
		FROM rooms r
		JOIN room_records rr ON rr.room_id = r.id
		JOIN records rec ON rec.id = rr.record_id
		LEFT JOIN room_admins ra ON ra.room_id = r.id
		LEFT JOIN admins a ON a.id = ra.admin_id
		ORDER BY r.id, rec.record_date DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest occupancies: %w", err)
	}
	defer rows.Close()

	occupancies := []models.RoomOccupancy{}
	for rows.Next() {
		var occ models.RoomOccupancy
		err := rows.Scan(
			&occ.RoomID,
			&occ.RoomNumber,
			&occ.BuildingNumber,
			&occ.MaxCapacity,
			&occ.Alert,
			&occ.AdminPhone,
			&occ.NumOccupants,
			&occ.RecordDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan occupancy row: %w", err)
		}
		occupancies = append(occupancies, occ)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate occupancy rows: %w", err)
	}

	return occupancies, nil
}

// SetAlert 条件更新报警标志（compare-and-set，避免并发评估互相覆盖）
// 返回是否真正发生了更新
func (r *RoomRepository) SetAlert(ctx context.Context, roomID int64, expected, value bool) (bool, error) {
	query := `
		UPDATE rooms SET alert = $1
		WHERE id = $2 AND alert = $3
	`

	result, err := r.db.ExecContext(ctx, query, value, roomID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to update alert flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
