package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medilink/appointment-engine/internal/appointment"
	"github.com/medilink/appointment-engine/internal/metrics"
	"github.com/medilink/appointment-engine/internal/schedule"
	"github.com/medilink/appointment-engine/internal/slot"
)

// Service turns a doctor's published schedule into the bookable slot grid the
// UI renders. Read-only and safe to call concurrently for different doctors.
type Service struct {
	resolver     *schedule.Resolver
	repo         appointment.Repository
	cache        *GridCache // optional
	slotDuration time.Duration
	now          func() time.Time
	logger       *zap.Logger
	metrics      *metrics.BookingMetrics
}

func NewService(resolver *schedule.Resolver, repo appointment.Repository, cache *GridCache, slotDuration time.Duration, logger *zap.Logger, m *metrics.BookingMetrics) *Service {
	return &Service{
		resolver:     resolver,
		repo:         repo,
		cache:        cache,
		slotDuration: slotDuration,
		now:          time.Now,
		logger:       logger,
		metrics:      m,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Grid resolves the doctor's schedule and expands it into slots for the given
// horizon. Grids are recomputed from work blocks plus confirmed appointments
// on every cache miss; they are never stored as source data.
func (s *Service) Grid(ctx context.Context, doctorID uuid.UUID, horizonDays int) ([]slot.TimeSlot, error) {
	if s.cache != nil {
		if grid, ok := s.cache.Get(ctx, doctorID, horizonDays); ok {
			s.metrics.ObserveGridCache(true)
			return grid, nil
		}
		s.metrics.ObserveGridCache(false)
	}

	blocks, err := s.resolver.Resolve(ctx, doctorID, horizonDays)
	if err != nil {
		return nil, fmt.Errorf("resolve schedule: %w", err)
	}
	if len(blocks) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	booked, err := s.repo.ListConfirmedInRange(ctx, doctorID, today, today.AddDate(0, 0, horizonDays))
	if err != nil {
		return nil, fmt.Errorf("list confirmed appointments: %w", err)
	}

	occupied := make([]slot.Booking, 0, len(booked))
	for _, a := range booked {
		occupied = append(occupied, slot.Booking{
			DoctorID: a.DoctorID,
			Start:    a.SlotStart,
			End:      a.SlotEnd,
		})
	}

	grid := slot.Generate(blocks, occupied, s.slotDuration, now)

	if s.cache != nil {
		if err := s.cache.Set(ctx, doctorID, horizonDays, grid); err != nil {
			s.logger.Warn("cache slot grid", zap.String("doctor_id", doctorID.String()), zap.Error(err))
		}
	}

	return grid, nil
}

// Invalidate drops the doctor's cached grids after a commit or cancel
// changes the appointment set, so the next render reflects it immediately
// instead of waiting out the TTL. Best effort: a failed drop only delays
// freshness, it never fails the booking.
func (s *Service) Invalidate(ctx context.Context, doctorID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, doctorID); err != nil {
		s.logger.Warn("invalidate grid cache", zap.String("doctor_id", doctorID.String()), zap.Error(err))
	}
}

// Summary folds the grid into per-date availability counts for the date
// picker.
func (s *Service) Summary(ctx context.Context, doctorID uuid.UUID, horizonDays int) ([]slot.DaySummary, error) {
	grid, err := s.Grid(ctx, doctorID, horizonDays)
	if err != nil {
		return nil, err
	}
	return slot.Summarize(grid), nil
}
