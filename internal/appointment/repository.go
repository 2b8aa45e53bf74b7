package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken signals the conditional insert lost to an existing
	// confirmed appointment on the same (doctor, start, end).
	ErrSlotTaken = errors.New("slot already confirmed")

	// ErrKeyTaken signals a concurrent commit with the same idempotency key
	// already inserted its row.
	ErrKeyTaken = errors.New("idempotency key already used")
)

// Repository contains all DB interactions needed by the reservation service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Appointment, error)

	// For conflict checks and slot-grid generation
	GetConfirmedForSlot(ctx context.Context, doctorID uuid.UUID, slotStart, slotEnd time.Time) (*Appointment, error)
	ListConfirmedInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// Creation and updates
	InsertConfirmed(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Listings
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)

	// Reminder worker
	ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
