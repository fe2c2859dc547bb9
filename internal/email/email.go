// Package email renders notification events into guest and owner emails and
// hands them to a transport.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/Domenick1991/tablebooking/internal/notify"
)

type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Body    string
}

type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

type Config struct {
	From      string
	Owner     string
	VenueName string
	Location  *time.Location
}

type Sender struct {
	cfg       Config
	transport Transport
}

func NewSender(cfg Config, transport Transport) *Sender {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Sender{cfg: cfg, transport: transport}
}

// Handle is a notify.Handler. Every email of an event is attempted; the first
// delivery error is returned.
func (s *Sender) Handle(ctx context.Context, event notify.Event) error {
	msgs, err := s.Render(event)
	if err != nil {
		return err
	}
	var firstErr error
	for _, msg := range msgs {
		if err := s.transport.Deliver(ctx, msg); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("deliver %q to %s: %w", msg.Subject, msg.To, err)
		}
	}
	return firstErr
}

// Render builds the emails for event without sending them.
func (s *Sender) Render(event notify.Event) ([]Message, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	switch event.Type {
	case notify.TypeReservationCreated:
		data := s.reservationData(event.Reservation, event.CancelURL)
		owner, err := s.render(ownerCreatedTmpl, data)
		if err != nil {
			return nil, err
		}
		guest, err := s.render(guestCreatedTmpl, data)
		if err != nil {
			return nil, err
		}
		return []Message{
			{
				From:    s.cfg.From,
				To:      s.cfg.Owner,
				Subject: fmt.Sprintf("New Reservation %s: %s, %d pax on %s", data.ID, data.Name, data.PartySize, data.Date),
				Body:    owner,
			},
			{
				From:    s.cfg.From,
				To:      event.Reservation.Customer.Email,
				Subject: fmt.Sprintf("Your reservation at %s is confirmed: %s", s.cfg.VenueName, data.ID),
				Body:    guest,
			},
		}, nil

	case notify.TypeReservationCancelled:
		data := s.reservationData(event.Reservation, "")
		body, err := s.render(ownerCancelledTmpl, data)
		if err != nil {
			return nil, err
		}
		return []Message{{
			From:    s.cfg.From,
			To:      s.cfg.Owner,
			Subject: fmt.Sprintf("Reservation Cancelled: %s, %s", data.ID, data.Name),
			Body:    body,
		}}, nil

	case notify.TypeContactMessage:
		body, err := s.render(contactTmpl, event.Contact)
		if err != nil {
			return nil, err
		}
		return []Message{{
			From:    s.cfg.From,
			To:      s.cfg.Owner,
			ReplyTo: event.Contact.Email,
			Subject: fmt.Sprintf("[Contact] %s from %s", event.Contact.Subject, event.Contact.Name),
			Body:    body,
		}}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", event.Type)
}

type reservationView struct {
	Venue     string
	ID        string
	Name      string
	Phone     string
	Email     string
	PartySize int
	Date      string
	Time      string
	Note      string
	CancelURL string
}

func (s *Sender) reservationData(res *domain.Reservation, cancelURL string) reservationView {
	start := res.StartAt.In(s.cfg.Location)
	return reservationView{
		Venue:     s.cfg.VenueName,
		ID:        res.ID,
		Name:      res.Customer.Name,
		Phone:     res.Customer.Phone,
		Email:     res.Customer.Email,
		PartySize: res.PartySize,
		Date:      start.Format("Monday, 2 January 2006"),
		Time:      start.Format("3:04 pm"),
		Note:      res.Note,
		CancelURL: cancelURL,
	}
}

func (s *Sender) render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
