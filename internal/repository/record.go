package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RecordRepository 检测记录仓库
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository 创建检测记录仓库
func NewRecordRepository(db *sql.DB, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// InsertOccupancy 插入一条检测记录并关联到房间。
// 两次插入在同一事务内完成，保证不会留下无关联的孤儿记录。
// source_key 是去重键：重复投递的同一事件不会重复计数，
// 此时返回 inserted=false 且不报错。
func (r *RecordRepository) InsertOccupancy(ctx context.Context, roomID int64, numOccupants int, sourceKey string, recordDate time.Time) (int64, bool, error) {
	if roomID <= 0 {
		return 0, false, fmt.Errorf("room_id is required")
	}
	if numOccupants < 0 {
		return 0, false, fmt.Errorf("num_occupants must be non-negative, got %d", numOccupants)
	}
	if sourceKey == "" {
		return 0, false, fmt.Errorf("source_key is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertRecord := `
		INSERT INTO records (record_date, num_occupants, source_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_key) DO NOTHING
		RETURNING id
	`

	var recordID int64
	err = tx.QueryRowContext(ctx, insertRecord, recordDate, numOccupants, sourceKey).Scan(&recordID)
	if err != nil {
		if err == sql.ErrNoRows {
			// 去重键冲突：同一事件的重放，按无操作处理
			r.logger.Info("Duplicate occupancy record skipped",
				zap.String("source_key", sourceKey),
				zap.Int64("room_id", roomID),
			)
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to insert record: %w", err)
	}

	insertLink := `
		INSERT INTO room_records (room_id, record_id)
		VALUES ($1, $2)
	`

	if _, err := tx.ExecContext(ctx, insertLink, roomID, recordID); err != nil {
		return 0, false, fmt.Errorf("failed to insert room record link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit occupancy insert: %w", err)
	}

	return recordID, true, nil
}

// CountRecordsForRoom 统计某房间的历史记录数（主要供测试/运维脚本使用）
func (r *RecordRepository) CountRecordsForRoom(ctx context.Context, roomID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM room_records WHERE room_id = $1
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}
