package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medilink/appointment-engine/internal/appointment"
	"github.com/medilink/appointment-engine/internal/metrics"
	"github.com/medilink/appointment-engine/internal/payment"
	"github.com/medilink/appointment-engine/internal/slot"
)

type State string

const (
	StateIdle             State = "IDLE"
	StateDateSelected     State = "DATE_SELECTED"
	StateSlotSelected     State = "SLOT_SELECTED"
	StateSymptomsCaptured State = "SYMPTOMS_CAPTURED"
	StatePaymentPending   State = "PAYMENT_PENDING"
	StateCommitted        State = "COMMITTED"
	StateAborted          State = "ABORTED"
)

// AvailabilityChecker re-validates a slot against the current appointment set.
type AvailabilityChecker interface {
	SlotAvailable(ctx context.Context, doctorID uuid.UUID, slotStart, slotEnd time.Time) (bool, error)
}

// Committer performs the idempotent reservation commit.
type Committer interface {
	Commit(ctx context.Context, req appointment.CommitRequest) (*appointment.Appointment, error)
}

// Config carries the policy knobs a session needs.
type Config struct {
	CutoffHour           int
	PaymentTimeout       time.Duration
	ConsultationFeeCents int64
	InsuredFeeCents      int64
}

// Session walks one patient through a reservation: date, slot, symptoms,
// payment, commit. Single-owner: exactly one active session exists per
// patient interaction and it is never mutated concurrently, so no locking.
// The session id doubles as the commit idempotency key, which is what makes
// a retried RequestPayment safe.
type Session struct {
	id        uuid.UUID
	patientID uuid.UUID
	doctorID  uuid.UUID

	state         State
	selectedDate  time.Time
	selectedSlot  *slot.TimeSlot
	symptoms      []string
	hasInsurance  bool
	paymentRef    string
	appointmentID uuid.UUID

	checker   AvailabilityChecker
	committer Committer
	gateway   payment.Adapter
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.BookingMetrics
}

func NewSession(patientID, doctorID uuid.UUID, checker AvailabilityChecker, committer Committer, gateway payment.Adapter, cfg Config, logger *zap.Logger) *Session {
	return &Session{
		id:        uuid.New(),
		patientID: patientID,
		doctorID:  doctorID,
		state:     StateIdle,
		checker:   checker,
		committer: committer,
		gateway:   gateway,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// WithMetrics attaches the booking metrics handle. Authorization outcomes
// are recorded per gateway call; a reused hold records nothing.
func (s *Session) WithMetrics(m *metrics.BookingMetrics) *Session {
	s.metrics = m
	return s
}

func (s *Session) ID() uuid.UUID            { return s.id }
func (s *Session) State() State             { return s.state }
func (s *Session) AppointmentID() uuid.UUID { return s.appointmentID }
func (s *Session) PaymentRef() string       { return s.paymentRef }

// SelectDate picks the booking day. Legal from IDLE, DATE_SELECTED (re-pick)
// and SLOT_SELECTED, where it clears the previously chosen slot.
func (s *Session) SelectDate(d time.Time) error {
	switch s.state {
	case StateIdle, StateDateSelected, StateSlotSelected:
	default:
		return fmt.Errorf("%w: selectDate from %s", ErrInvalidTransition, s.state)
	}

	day := d.UTC().Truncate(24 * time.Hour)
	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)

	if day.Before(today) {
		return fmt.Errorf("%w: %s is in the past", ErrDateDisabled, day.Format("2006-01-02"))
	}
	if day.Equal(today) && now.Hour() >= s.cfg.CutoffHour {
		return fmt.Errorf("%w: same-day bookings close at %02d:00", ErrDateDisabled, s.cfg.CutoffHour)
	}

	s.selectedDate = day
	s.selectedSlot = nil
	s.state = StateDateSelected
	return nil
}

// SelectSlot picks a slot on the selected date.
func (s *Session) SelectSlot(ts slot.TimeSlot) error {
	if s.state != StateDateSelected {
		return fmt.Errorf("%w: selectSlot from %s", ErrInvalidTransition, s.state)
	}
	if ts.DoctorID != s.doctorID || ts.Status != slot.StatusAvailable {
		return fmt.Errorf("%w: status %s", ErrSlotNotSelectable, ts.Status)
	}
	if !ts.Date().Equal(s.selectedDate) {
		return ErrSlotWrongDate
	}

	s.selectedSlot = &ts
	s.state = StateSlotSelected
	return nil
}

// SubmitSymptoms records the reason for the visit. An empty list is rejected
// synchronously and the session stays in SLOT_SELECTED.
func (s *Session) SubmitSymptoms(symptoms []string) error {
	if s.state != StateSlotSelected {
		return fmt.Errorf("%w: submitSymptoms from %s", ErrInvalidTransition, s.state)
	}

	cleaned := make([]string, 0, len(symptoms))
	for _, sym := range symptoms {
		if t := strings.TrimSpace(sym); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return ErrEmptySymptoms
	}

	s.symptoms = cleaned
	s.state = StateSymptomsCaptured
	return nil
}

// SetInsurance flags insurance coverage, which lowers the charged fee. Not a
// state transition; legal until payment starts. Once an authorization is
// held the amount is fixed, so the flag can no longer change.
func (s *Session) SetInsurance(has bool) error {
	switch s.state {
	case StatePaymentPending, StateCommitted, StateAborted:
		return fmt.Errorf("%w: setInsurance from %s", ErrInvalidTransition, s.state)
	}
	if s.paymentRef != "" {
		return fmt.Errorf("%w: payment already authorized", ErrInvalidTransition)
	}
	s.hasInsurance = has
	return nil
}

// RequestPayment drives the session through payment and commit. The slot is
// re-validated first regardless of how long ago it was displayed; a stale
// selection drops the session back to DATE_SELECTED. Payment decline or
// timeout aborts the session with no appointment created; the reservation is
// only committed after the gateway authorizes.
func (s *Session) RequestPayment(ctx context.Context) (*appointment.Appointment, error) {
	if s.state != StateSymptomsCaptured {
		return nil, fmt.Errorf("%w: requestPayment from %s", ErrInvalidTransition, s.state)
	}

	picked := *s.selectedSlot

	open, err := s.checker.SlotAvailable(ctx, s.doctorID, picked.Start, picked.End)
	if err != nil {
		// Transient; the session stays where it is so the caller can retry.
		return nil, fmt.Errorf("re-validate slot: %w", err)
	}
	if !open {
		s.fallbackToDateSelection()
		return nil, ErrSlotNoLongerAvailable
	}

	s.state = StatePaymentPending

	// A retried RequestPayment may still hold the authorization from the
	// previous attempt; charging the gateway again would double-hold the
	// patient's funds.
	if s.paymentRef == "" {
		payCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
		defer cancel()

		result, err := s.gateway.Authorize(payCtx, s.amountCents(), s.id.String())
		if err != nil {
			// No appointment exists in this branch, so aborting needs no
			// compensating release.
			s.state = StateAborted
			if errors.Is(err, payment.ErrDeclined) {
				s.metrics.ObservePayment("declined")
				return nil, err
			}
			if errors.Is(err, payment.ErrTimeout) || payCtx.Err() != nil {
				s.metrics.ObservePayment("timeout")
				return nil, fmt.Errorf("%w: %v", payment.ErrTimeout, err)
			}
			s.metrics.ObservePayment("error")
			return nil, fmt.Errorf("authorize payment: %w", err)
		}
		s.paymentRef = result.TransactionID
		s.metrics.ObservePayment("authorized")
	}

	appt, err := s.committer.Commit(ctx, appointment.CommitRequest{
		IdempotencyKey: s.id.String(),
		DoctorID:       s.doctorID,
		PatientID:      s.patientID,
		SlotStart:      picked.Start,
		SlotEnd:        picked.End,
		ShiftStart:     picked.BlockStart,
		Symptoms:       s.symptoms,
	})
	if err != nil {
		switch {
		case errors.Is(err, appointment.ErrSlotConflict), errors.Is(err, appointment.ErrSlotBeingBooked):
			// Lost the race after authorization. The hold stays on the
			// session; booking another slot reuses it instead of charging
			// again, the caller voids it upstream if the patient walks away.
			s.logger.Warn("commit lost slot race after authorization",
				zap.String("session_id", s.id.String()),
				zap.String("payment_ref", s.paymentRef),
			)
			s.fallbackToDateSelection()
			return nil, err
		default:
			// Transient storage failure: step back so the same session can
			// retry with the same idempotency key.
			s.state = StateSymptomsCaptured
			return nil, err
		}
	}

	s.appointmentID = appt.ID
	s.state = StateCommitted

	return appt, nil
}

// Cancel aborts the session. Idempotent: cancelling a terminal session is a
// no-op. Cancelling from PAYMENT_PENDING is legal; an in-flight authorization
// observes the caller's context cancellation and resolves through
// RequestPayment's abort path.
func (s *Session) Cancel() {
	switch s.state {
	case StateCommitted, StateAborted:
		return
	}
	s.state = StateAborted
}

func (s *Session) fallbackToDateSelection() {
	s.selectedSlot = nil
	s.state = StateDateSelected
}

func (s *Session) amountCents() int64 {
	if s.hasInsurance {
		return s.cfg.InsuredFeeCents
	}
	return s.cfg.ConsultationFeeCents
}

// Snapshot is the read-only, serializable view of a session for rendering.
type Snapshot struct {
	SessionID     uuid.UUID      `json:"session_id"`
	PatientID     uuid.UUID      `json:"patient_id"`
	DoctorID      uuid.UUID      `json:"doctor_id"`
	State         State          `json:"state"`
	SelectedDate  *time.Time     `json:"selected_date,omitempty"`
	SelectedSlot  *slot.TimeSlot `json:"selected_slot,omitempty"`
	Symptoms      []string       `json:"symptoms,omitempty"`
	HasInsurance  bool           `json:"has_insurance"`
	PaymentRef    string         `json:"payment_ref,omitempty"`
	AppointmentID *uuid.UUID     `json:"appointment_id,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		PatientID:    s.patientID,
		DoctorID:     s.doctorID,
		State:        s.state,
		Symptoms:     append([]string(nil), s.symptoms...),
		HasInsurance: s.hasInsurance,
		PaymentRef:   s.paymentRef,
	}
	if !s.selectedDate.IsZero() {
		d := s.selectedDate
		snap.SelectedDate = &d
	}
	if s.selectedSlot != nil {
		ts := *s.selectedSlot
		snap.SelectedSlot = &ts
	}
	if s.appointmentID != uuid.Nil {
		id := s.appointmentID
		snap.AppointmentID = &id
	}
	return snap
}
