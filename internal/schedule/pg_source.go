package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgxpool.Pool the source needs; satisfied by
// pgxmock in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgSource reads published work blocks from Postgres.
type PgSource struct {
	db Querier
}

func NewPgSource(pool *pgxpool.Pool) *PgSource {
	return &PgSource{db: pool}
}

func NewPgSourceWithQuerier(q Querier) *PgSource {
	return &PgSource{db: q}
}

func (s *PgSource) Blocks(ctx context.Context, doctorID uuid.UUID, day time.Time, shift Shift) ([]WorkBlock, error) {
	rows, err := s.db.Query(ctx, `
		SELECT doctor_id, work_date, shift, start_time, end_time, room_id
		FROM work_blocks
		WHERE doctor_id = $1 AND work_date = $2 AND shift = $3
		ORDER BY start_time
	`, doctorID, day, string(shift))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []WorkBlock
	for rows.Next() {
		var b WorkBlock
		var shiftStr string
		if err := rows.Scan(&b.DoctorID, &b.Date, &shiftStr, &b.Start, &b.End, &b.RoomID); err != nil {
			return nil, err
		}
		b.Shift = Shift(shiftStr)
		blocks = append(blocks, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return blocks, nil
}
