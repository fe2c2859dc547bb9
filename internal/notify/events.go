// Package notify defines the notification events the booking service emits
// after a durable change and the worker turns into email.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/tablebooking/internal/domain"
)

// Event types double as RabbitMQ routing keys.
const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationCancelled = "reservation.cancelled"
	TypeContactMessage       = "contact.message"
)

type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type Event struct {
	Type        string              `json:"type"`
	OccurredAt  time.Time           `json:"occurredAt"`
	Reservation *domain.Reservation `json:"reservation,omitempty"`
	// CancelURL carries the capability link and is only set on
	// reservation.created.
	CancelURL string   `json:"cancelUrl,omitempty"`
	Contact   *Contact `json:"contact,omitempty"`
}

func ReservationCreated(res *domain.Reservation, cancelURL string, at time.Time) Event {
	return Event{Type: TypeReservationCreated, OccurredAt: at, Reservation: res, CancelURL: cancelURL}
}

func ReservationCancelled(res *domain.Reservation, at time.Time) Event {
	return Event{Type: TypeReservationCancelled, OccurredAt: at, Reservation: res}
}

func ContactMessage(c Contact, at time.Time) Event {
	return Event{Type: TypeContactMessage, OccurredAt: at, Contact: &c}
}

// Key groups events of one reservation (or one sender) on the same partition.
func (e Event) Key() string {
	switch {
	case e.Reservation != nil:
		return e.Reservation.ID
	case e.Contact != nil:
		return e.Contact.Email
	default:
		return e.Type
	}
}

func (e Event) Validate() error {
	switch e.Type {
	case TypeReservationCreated, TypeReservationCancelled:
		if e.Reservation == nil {
			return fmt.Errorf("%s event without reservation", e.Type)
		}
	case TypeContactMessage:
		if e.Contact == nil {
			return fmt.Errorf("%s event without contact", e.Type)
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Handler func(ctx context.Context, event Event) error
