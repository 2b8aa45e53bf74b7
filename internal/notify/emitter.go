package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/medilink/appointment-engine/internal/appointment"
)

// Emitter informs the patient of a booking outcome. Best effort: callers log
// failures and move on, delivery never blocks or fails a booking.
type Emitter interface {
	BookingConfirmed(ctx context.Context, appt *appointment.Appointment) error
	BookingCancelled(ctx context.Context, appt *appointment.Appointment) error
	AppointmentReminder(ctx context.Context, appt *appointment.Appointment) error
}

// LogEmitter writes notifications to the log. The default when no broker is
// configured.
type LogEmitter struct {
	logger *zap.Logger
}

func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) BookingConfirmed(ctx context.Context, appt *appointment.Appointment) error {
	e.log("booking confirmed", appt)
	return nil
}

func (e *LogEmitter) BookingCancelled(ctx context.Context, appt *appointment.Appointment) error {
	e.log("booking cancelled", appt)
	return nil
}

func (e *LogEmitter) AppointmentReminder(ctx context.Context, appt *appointment.Appointment) error {
	e.log("appointment reminder", appt)
	return nil
}

func (e *LogEmitter) log(msg string, appt *appointment.Appointment) {
	e.logger.Info(msg,
		zap.String("appointment_id", appt.ID.String()),
		zap.String("patient_id", appt.PatientID.String()),
		zap.Time("slot_start", appt.SlotStart),
	)
}
