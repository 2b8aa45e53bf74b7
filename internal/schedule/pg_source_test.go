package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgSourceBlocks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := NewPgSourceWithQuerier(mock)

	doctorID := uuid.New()
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"doctor_id", "work_date", "shift", "start_time", "end_time", "room_id"}).
		AddRow(doctorID, day, "MORNING", day.Add(8*time.Hour+30*time.Minute), day.Add(12*time.Hour), 101).
		AddRow(doctorID, day, "MORNING", day.Add(12*time.Hour+15*time.Minute), day.Add(12*time.Hour+45*time.Minute), 101)

	mock.ExpectQuery("SELECT (.+) FROM work_blocks").
		WithArgs(doctorID, day, "MORNING").
		WillReturnRows(rows)

	blocks, err := src.Blocks(context.Background(), doctorID, day, ShiftMorning)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, ShiftMorning, blocks[0].Shift)
	assert.Equal(t, day.Add(8*time.Hour+30*time.Minute), blocks[0].Start)
	assert.Equal(t, 101, blocks[0].RoomID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSourceBlocksEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := NewPgSourceWithQuerier(mock)

	doctorID := uuid.New()
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM work_blocks").
		WithArgs(doctorID, day, "AFTERNOON").
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "work_date", "shift", "start_time", "end_time", "room_id"}))

	blocks, err := src.Blocks(context.Background(), doctorID, day, ShiftAfternoon)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSourceBlocksQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := NewPgSourceWithQuerier(mock)

	doctorID := uuid.New()
	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM work_blocks").
		WithArgs(doctorID, day, "MORNING").
		WillReturnError(errors.New("connection refused"))

	_, err = src.Blocks(context.Background(), doctorID, day, ShiftMorning)
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
