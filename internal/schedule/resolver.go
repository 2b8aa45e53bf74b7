package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSourceUnavailable = errors.New("schedule source unavailable")
)

// Source is the external system of record for doctors' working blocks.
// A (day, shift) with no published blocks returns an empty slice, not an error.
type Source interface {
	Blocks(ctx context.Context, doctorID uuid.UUID, day time.Time, shift Shift) ([]WorkBlock, error)
}

// Resolver normalizes raw working blocks into a bounded, ordered horizon.
type Resolver struct {
	source     Source
	cutoffHour int
	now        func() time.Time
	logger     *zap.Logger
}

func NewResolver(source Source, cutoffHour int, logger *zap.Logger) *Resolver {
	return &Resolver{
		source:     source,
		cutoffHour: cutoffHour,
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock overrides the wall clock, for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve fetches the doctor's working blocks for [today, today+horizonDays).
// Today is excluded entirely once the same-day cutoff hour has passed. The
// result is sorted by date, then shift (morning first), then start time; an
// empty result means the doctor has no availability in the horizon.
func (r *Resolver) Resolve(ctx context.Context, doctorID uuid.UUID, horizonDays int) ([]WorkBlock, error) {
	now := r.now().UTC()
	today := now.Truncate(24 * time.Hour)

	firstDay := 0
	if now.Hour() >= r.cutoffHour {
		firstDay = 1
	}

	var blocks []WorkBlock
	for d := firstDay; d < horizonDays; d++ {
		day := today.AddDate(0, 0, d)
		for _, shift := range Shifts {
			got, err := r.source.Blocks(ctx, doctorID, day, shift)
			if err != nil {
				return nil, fmt.Errorf("%w: doctor %s day %s shift %s: %v",
					ErrSourceUnavailable, doctorID, day.Format("2006-01-02"), shift, err)
			}
			for _, b := range got {
				if b.Date.Before(today) {
					continue
				}
				blocks = append(blocks, b)
			}
		}
	}

	sort.Slice(blocks, func(i, j int) bool {
		if !blocks[i].Date.Equal(blocks[j].Date) {
			return blocks[i].Date.Before(blocks[j].Date)
		}
		if blocks[i].Shift != blocks[j].Shift {
			return shiftRank(blocks[i].Shift) < shiftRank(blocks[j].Shift)
		}
		return blocks[i].Start.Before(blocks[j].Start)
	})

	r.logger.Debug("resolved schedule",
		zap.String("doctor_id", doctorID.String()),
		zap.Int("horizon_days", horizonDays),
		zap.Int("blocks", len(blocks)),
	)

	return blocks, nil
}
