package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/medilink/appointment-engine/internal/appointment"
)

const (
	RoutingKeyConfirmed = "appointment.confirmed"
	RoutingKeyCancelled = "appointment.cancelled"
	RoutingKeyReminder  = "appointment.reminder"
)

// AMQPEmitter publishes booking notifications to a topic exchange for the
// downstream notification service to deliver.
type AMQPEmitter struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPEmitter(url, exchange string) (*AMQPEmitter, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPEmitter{conn: conn, ch: ch, exchange: exchange}, nil
}

func (e *AMQPEmitter) BookingConfirmed(ctx context.Context, appt *appointment.Appointment) error {
	return e.publish(ctx, RoutingKeyConfirmed, appt)
}

func (e *AMQPEmitter) BookingCancelled(ctx context.Context, appt *appointment.Appointment) error {
	return e.publish(ctx, RoutingKeyCancelled, appt)
}

func (e *AMQPEmitter) AppointmentReminder(ctx context.Context, appt *appointment.Appointment) error {
	return e.publish(ctx, RoutingKeyReminder, appt)
}

func (e *AMQPEmitter) publish(ctx context.Context, key string, appt *appointment.Appointment) error {
	body, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID.String(),
		"doctor_id":      appt.DoctorID.String(),
		"patient_id":     appt.PatientID.String(),
		"slot_start":     appt.SlotStart.Format(time.RFC3339),
		"slot_end":       appt.SlotEnd.Format(time.RFC3339),
		"number":         appt.Number,
		"status":         string(appt.Status),
	})
	if err != nil {
		return err
	}
	return e.ch.PublishWithContext(ctx, e.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (e *AMQPEmitter) Close() error {
	if e.ch != nil {
		_ = e.ch.Close()
	}
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}
