package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Appointment is created exactly once per successful reservation commit.
// Immutable except for the confirmed -> cancelled status transition.
type Appointment struct {
	ID             uuid.UUID
	IdempotencyKey string
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	SlotStart      time.Time
	SlotEnd        time.Time
	Symptoms       []string
	Number         int // visit number: slot position within the work block
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
