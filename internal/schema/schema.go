package schema

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// 建表语句。记录表带去重键，重复入库命中唯一约束后静默跳过。
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id BIGSERIAL PRIMARY KEY,
		room_number TEXT NOT NULL,
		building_number TEXT NOT NULL,
		max_capacity INT NOT NULL,
		alert BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (room_number, building_number)
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id BIGSERIAL PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS room_admins (
		room_id BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		admin_id BIGINT NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
		PRIMARY KEY (room_id, admin_id)
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		id BIGSERIAL PRIMARY KEY,
		record_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		num_occupants INT NOT NULL,
		source_key TEXT UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS room_records (
		room_id BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		record_id BIGINT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
		PRIMARY KEY (room_id, record_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_room_records_room ON room_records (room_id)`,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS room_records`,
	`DROP TABLE IF EXISTS room_admins`,
	`DROP TABLE IF EXISTS records`,
	`DROP TABLE IF EXISTS admins`,
	`DROP TABLE IF EXISTS rooms`,
}

// Create 建表。reset 为 true 时先删除既有表（测试环境用）
func Create(ctx context.Context, db *sql.DB, reset bool, logger *zap.Logger) error {
	if reset {
		for _, stmt := range dropStatements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to drop table: %w", err)
			}
		}
		logger.Info("Existing tables dropped")
	}

	for _, stmt := range createStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	logger.Info("Schema created")
	return nil
}

// Seed 写入初始房间和管理员（已存在时跳过）
func Seed(ctx context.Context, db *sql.DB, adminPhone string, logger *zap.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var roomID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO rooms (room_number, building_number, max_capacity, alert)
		VALUES ('2000', 'GOL', 9, FALSE)
		ON CONFLICT (room_number, building_number) DO UPDATE SET max_capacity = EXCLUDED.max_capacity
		RETURNING id
	`).Scan(&roomID)
	if err != nil {
		return fmt.Errorf("failed to seed room: %w", err)
	}

	if adminPhone != "" {
		var adminID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO admins (first_name, last_name, department, phone, email)
			VALUES ('Facilities', 'Admin', 'facilities', $1, '')
			RETURNING id
		`, adminPhone).Scan(&adminID)
		if err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO room_admins (room_id, admin_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, roomID, adminID)
		if err != nil {
			return fmt.Errorf("failed to link admin to room: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	logger.Info("Seed data written",
		zap.Int64("room_id", roomID),
		zap.String("admin_phone", adminPhone),
	)
	return nil
}
