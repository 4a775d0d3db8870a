package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockRecordDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *RecordRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewRecordRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestInsertOccupancy_Success(t *testing.T) {
	db, mock, repo := setupMockRecordDB(t)
	defer db.Close()

	ctx := context.Background()
	recordDate := time.Now()
	sourceKey := "GOL_2000_2021-04-20____12___30___45.123456__00___00"

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO records`).
		WithArgs(recordDate, 3, sourceKey).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(`INSERT INTO room_records`).
		WithArgs(int64(1), int64(42)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	recordID, inserted, err := repo.InsertOccupancy(ctx, 1, 3, sourceKey, recordDate)

	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(42), recordID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOccupancy_DuplicateSourceKey(t *testing.T) {
	db, mock, repo := setupMockRecordDB(t)
	defer db.Close()

	ctx := context.Background()
	recordDate := time.Now()
	sourceKey := "GOL_2000_2021-04-20____12___30___45.123456__00___00"

	mock.ExpectBegin()
	// ON CONFLICT DO NOTHING：重放同一事件时 RETURNING 没有行
	mock.ExpectQuery(`INSERT INTO records`).
		WithArgs(recordDate, 3, sourceKey).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	recordID, inserted, err := repo.InsertOccupancy(ctx, 1, 3, sourceKey, recordDate)

	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, recordID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOccupancy_LinkFailureRollsBack(t *testing.T) {
	db, mock, repo := setupMockRecordDB(t)
	defer db.Close()

	ctx := context.Background()
	recordDate := time.Now()
	sourceKey := "GOL_2000_ts"

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO records`).
		WithArgs(recordDate, 3, sourceKey).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(`INSERT INTO room_records`).
		WithArgs(int64(1), int64(42)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, inserted, err := repo.InsertOccupancy(ctx, 1, 3, sourceKey, recordDate)

	assert.Error(t, err)
	assert.False(t, inserted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOccupancy_InvalidArgs(t *testing.T) {
	db, mock, repo := setupMockRecordDB(t)
	defer db.Close()

	ctx := context.Background()

	_, _, err := repo.InsertOccupancy(ctx, 0, 3, "key", time.Now())
	assert.Error(t, err)

	_, _, err = repo.InsertOccupancy(ctx, 1, -1, "key", time.Now())
	assert.Error(t, err)

	_, _, err = repo.InsertOccupancy(ctx, 1, 3, "", time.Now())
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRecordsForRoom(t *testing.T) {
	db, mock, repo := setupMockRecordDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountRecordsForRoom(ctx, 1)

	require.NoError(t, err)
	assert.Equal(t, 7, count)

	require.NoError(t, mock.ExpectationsWereMet())
}
