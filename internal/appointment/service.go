package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medilink/appointment-engine/internal/metrics"
	redisclient "github.com/medilink/appointment-engine/internal/redis"
)

const (
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"

	maxCommitAttempts = 3
	commitBackoffBase = 100 * time.Millisecond
)

var (
	// ErrSlotConflict: lost the race for the slot. Never retried
	// automatically; the caller must re-select.
	ErrSlotConflict = errors.New("slot already has a confirmed appointment")

	// ErrSlotBeingBooked: another commit holds the slot lock right now.
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")

	// ErrPersistenceUnavailable: transient storage failure after retries.
	ErrPersistenceUnavailable = errors.New("appointment store unavailable")

	ErrInvalidInput   = errors.New("invalid commit input")
	ErrNotCancellable = errors.New("appointment is not in a cancellable state")
)

// CommitRequest carries everything a reservation commit needs. IdempotencyKey
// is client-generated (the booking session id); repeating a commit with the
// same key returns the original appointment.
type CommitRequest struct {
	IdempotencyKey string
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	SlotStart      time.Time
	SlotEnd        time.Time
	ShiftStart     time.Time // start of the work block, for the visit number
	Symptoms       []string
}

// Notifier informs the patient of a booking outcome. Best effort: failures
// are logged and never fail the commit or cancel that triggered them.
type Notifier interface {
	BookingConfirmed(ctx context.Context, appt *Appointment) error
	BookingCancelled(ctx context.Context, appt *Appointment) error
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	logger   *zap.Logger
	metrics  *metrics.BookingMetrics
	notifier Notifier // optional
}

func NewService(repo Repository, locker redisclient.Locker, logger *zap.Logger, m *metrics.BookingMetrics) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		logger:  logger,
		metrics: m,
	}
}

// WithNotifier attaches the outbound notification channel.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Commit reserves the slot with at-most-one-winner semantics. The Redis lock
// sheds concurrent attempts for the same slot early; the partial unique index
// behind InsertConfirmed is the actual guarantee, so a lost lock race still
// cannot produce a double booking.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (*Appointment, error) {
	start := time.Now()

	if err := validateCommit(req); err != nil {
		s.metrics.ObserveCommit("invalid", time.Since(start).Seconds())
		return nil, err
	}

	// Repeated commit with a known key returns the original row.
	if existing, err := s.repo.GetByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		s.metrics.ObserveCommit("duplicate", time.Since(start).Seconds())
		return existing, nil
	} else if !errors.Is(err, ErrAppointmentNotFound) {
		s.metrics.ObserveCommit("unavailable", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: lookup idempotency key: %v", ErrPersistenceUnavailable, err)
	}

	appt, err := s.commitWithRetry(ctx, req)
	if err != nil {
		s.metrics.ObserveCommit(commitOutcome(err), time.Since(start).Seconds())
		return nil, err
	}

	payload := map[string]any{
		"doctor_id":  appt.DoctorID.String(),
		"patient_id": appt.PatientID.String(),
		"slot_start": appt.SlotStart,
		"slot_end":   appt.SlotEnd,
		"number":     appt.Number,
	}
	s.logEvent(ctx, appt.ID, EventAppointmentConfirmed, payload)
	s.notify(ctx, appt, "confirmed")

	s.metrics.ObserveCommit("committed", time.Since(start).Seconds())
	s.logger.Info("appointment committed",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("doctor_id", appt.DoctorID.String()),
		zap.Time("slot_start", appt.SlotStart),
	)

	return appt, nil
}

func (s *Service) commitWithRetry(ctx context.Context, req CommitRequest) (*Appointment, error) {
	var lastErr error

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		if attempt > 0 {
			backoff := commitBackoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		appt, err := s.commitOnce(ctx, req)
		if err == nil {
			return appt, nil
		}

		// Conflicts and duplicate keys are definitive, not transient.
		if errors.Is(err, ErrSlotConflict) || errors.Is(err, ErrSlotBeingBooked) {
			return nil, err
		}
		if errors.Is(err, ErrKeyTaken) {
			if existing, getErr := s.repo.GetByIdempotencyKey(ctx, req.IdempotencyKey); getErr == nil {
				return existing, nil
			}
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		s.logger.Warn("commit attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, lastErr)
}

func (s *Service) commitOnce(ctx context.Context, req CommitRequest) (*Appointment, error) {
	var created *Appointment

	err := s.locker.WithSlotLock(ctx, req.DoctorID, req.SlotStart, func(lockCtx context.Context) error {
		// Inside the critical section re-check the slot is still free.
		existing, err := s.repo.GetConfirmedForSlot(lockCtx, req.DoctorID, req.SlotStart, req.SlotEnd)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check confirmed appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotConflict
		}

		appt, err := s.repo.InsertConfirmed(lockCtx, &Appointment{
			IdempotencyKey: req.IdempotencyKey,
			DoctorID:       req.DoctorID,
			PatientID:      req.PatientID,
			SlotStart:      req.SlotStart,
			SlotEnd:        req.SlotEnd,
			Symptoms:       req.Symptoms,
			Number:         visitNumber(req),
		})
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotConflict
			}
			return fmt.Errorf("insert confirmed appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// Cancel flips a confirmed appointment to cancelled. Cancelling an already
// cancelled appointment is a no-op returning the current row.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == StatusCancelled {
		return appt, nil
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrNotCancellable
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusConfirmed, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Raced with another cancel; report the current state.
			if current, getErr := s.repo.GetByID(ctx, id); getErr == nil && current.Status == StatusCancelled {
				return current, nil
			}
			return nil, ErrNotCancellable
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"doctor_id":  updated.DoctorID.String(),
		"slot_start": updated.SlotStart,
	})
	s.notify(ctx, updated, "cancelled")

	return updated, nil
}

func (s *Service) notify(ctx context.Context, appt *Appointment, outcome string) {
	if s.notifier == nil {
		return
	}

	var err error
	switch outcome {
	case "confirmed":
		err = s.notifier.BookingConfirmed(ctx, appt)
	case "cancelled":
		err = s.notifier.BookingCancelled(ctx, appt)
	}
	if err != nil {
		s.logger.Warn("booking notification failed",
			zap.String("outcome", outcome),
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}
}

// SlotAvailable reports whether no confirmed appointment occupies the slot.
// Used by booking sessions to re-validate a stale selection before payment.
func (s *Service) SlotAvailable(ctx context.Context, doctorID uuid.UUID, slotStart, slotEnd time.Time) (bool, error) {
	_, err := s.repo.GetConfirmedForSlot(ctx, doctorID, slotStart, slotEnd)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return false, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

func (s *Service) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	appointments, err := s.repo.ListByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor and date: %w", err)
	}
	return appointments, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

func validateCommit(req CommitRequest) error {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return fmt.Errorf("%w: idempotency key required", ErrInvalidInput)
	}
	if req.DoctorID == uuid.Nil || req.PatientID == uuid.Nil {
		return fmt.Errorf("%w: doctor and patient ids required", ErrInvalidInput)
	}
	if !req.SlotEnd.After(req.SlotStart) {
		return fmt.Errorf("%w: slot end must be after slot start", ErrInvalidInput)
	}
	if !req.ShiftStart.IsZero() && req.ShiftStart.After(req.SlotStart) {
		return fmt.Errorf("%w: shift start after slot start", ErrInvalidInput)
	}
	if len(nonEmptySymptoms(req.Symptoms)) == 0 {
		return fmt.Errorf("%w: at least one symptom required", ErrInvalidInput)
	}
	return nil
}

func nonEmptySymptoms(symptoms []string) []string {
	out := symptoms[:0:0]
	for _, s := range symptoms {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// visitNumber positions the slot within its work block: the first slot of a
// shift is visit 1.
func visitNumber(req CommitRequest) int {
	shiftStart := req.ShiftStart
	if shiftStart.IsZero() {
		shiftStart = req.SlotStart
	}
	duration := req.SlotEnd.Sub(req.SlotStart)
	return int(req.SlotStart.Sub(shiftStart)/duration) + 1
}

func commitOutcome(err error) string {
	switch {
	case errors.Is(err, ErrSlotConflict), errors.Is(err, ErrSlotBeingBooked):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		return "unavailable"
	}
}
