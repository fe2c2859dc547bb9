package email

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/Domenick1991/tablebooking/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	sent []Message
	err  error
}

func (t *recordingTransport) Deliver(_ context.Context, msg Message) error {
	t.sent = append(t.sent, msg)
	return t.err
}

var venue = time.FixedZone("AEST", 10*60*60)

func testSender(transport Transport) *Sender {
	return NewSender(Config{
		From:      "hello@example.com",
		Owner:     "owner@example.com",
		VenueName: "The Nordic Deli",
		Location:  venue,
	}, transport)
}

func testReservation() *domain.Reservation {
	return &domain.Reservation{
		ID:        "R-AB3D2",
		Customer:  domain.Customer{Name: "Sam Lee", Phone: "0400 000 000", Email: "sam@example.com"},
		PartySize: 4,
		// 23:00 UTC is 09:00 the next morning at the venue.
		StartAt: time.Date(2026, 6, 19, 23, 0, 0, 0, time.UTC),
		Note:    "window seat",
		Status:  domain.ReservationStatusConfirmed,
	}
}

func TestSender_ReservationCreated(t *testing.T) {
	tr := &recordingTransport{}
	s := testSender(tr)
	ev := notify.ReservationCreated(testReservation(), "https://example.com/reserve/cancel?token=R-AB3D2%3Aabc", time.Now())

	require.NoError(t, s.Handle(context.Background(), ev))
	require.Len(t, tr.sent, 2)

	owner, guest := tr.sent[0], tr.sent[1]
	assert.Equal(t, "owner@example.com", owner.To)
	assert.Equal(t, "New Reservation R-AB3D2: Sam Lee, 4 pax on Saturday, 20 June 2026", owner.Subject)
	assert.Contains(t, owner.Body, "Time:       9:00 am")
	assert.Contains(t, owner.Body, "Party size: 4 people")
	assert.Contains(t, owner.Body, "Note:       window seat")
	assert.Contains(t, owner.Body, ev.CancelURL)

	assert.Equal(t, "sam@example.com", guest.To)
	assert.Equal(t, "hello@example.com", guest.From)
	assert.Equal(t, "Your reservation at The Nordic Deli is confirmed: R-AB3D2", guest.Subject)
	assert.Contains(t, guest.Body, "Hi Sam Lee,")
	assert.Contains(t, guest.Body, ev.CancelURL)
}

func TestSender_ReservationCancelled(t *testing.T) {
	tr := &recordingTransport{}
	s := testSender(tr)

	require.NoError(t, s.Handle(context.Background(), notify.ReservationCancelled(testReservation(), time.Now())))
	require.Len(t, tr.sent, 1)
	assert.Equal(t, "owner@example.com", tr.sent[0].To)
	assert.Equal(t, "Reservation Cancelled: R-AB3D2, Sam Lee", tr.sent[0].Subject)
	assert.Contains(t, tr.sent[0].Body, "Saturday, 20 June 2026")
}

func TestSender_ContactMessage(t *testing.T) {
	tr := &recordingTransport{}
	s := testSender(tr)
	c := notify.Contact{Name: "Alex", Email: "alex@example.com", Subject: "Catering", Message: "Do you cater for 40 people?"}

	require.NoError(t, s.Handle(context.Background(), notify.ContactMessage(c, time.Now())))
	require.Len(t, tr.sent, 1)
	assert.Equal(t, "alex@example.com", tr.sent[0].ReplyTo)
	assert.Equal(t, "[Contact] Catering from Alex", tr.sent[0].Subject)
	assert.Contains(t, tr.sent[0].Body, "From:    Alex <alex@example.com>")
	assert.Contains(t, tr.sent[0].Body, "Do you cater for 40 people?")
}

func TestSender_DeliveryErrorStillAttemptsAll(t *testing.T) {
	tr := &recordingTransport{err: errors.New("smtp down")}
	s := testSender(tr)

	err := s.Handle(context.Background(), notify.ReservationCreated(testReservation(), "u", time.Now()))
	assert.ErrorContains(t, err, "smtp down")
	assert.Len(t, tr.sent, 2)
}

func TestSender_InvalidEvent(t *testing.T) {
	tr := &recordingTransport{}
	s := testSender(tr)

	assert.Error(t, s.Handle(context.Background(), notify.Event{Type: notify.TypeReservationCreated}))
	assert.Empty(t, tr.sent)
}

func TestLogTransport(t *testing.T) {
	var buf bytes.Buffer
	tr := NewLogTransport(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, tr.Deliver(context.Background(), Message{To: "a@b.c", Subject: "hi"}))
	assert.Contains(t, buf.String(), "to=a@b.c")
	assert.Contains(t, buf.String(), "subject=hi")
}

func TestSMTPTransport_Deliver(t *testing.T) {
	tr, err := NewSMTPTransport("smtp.example.com:587", "user", "pass")
	require.NoError(t, err)
	require.NotNil(t, tr.auth)

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	tr.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}
	tr.now = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }

	err = tr.Deliver(context.Background(), Message{
		From:    "hello@example.com",
		To:      "owner@example.com",
		ReplyTo: "guest@example.com",
		Subject: "Hi\r\nBcc: victim@example.com",
		Body:    "line one\nline two",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "hello@example.com", gotFrom)
	assert.Equal(t, []string{"owner@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Reply-To: guest@example.com\r\n")
	assert.Contains(t, gotMsg, "Subject: Hi  Bcc: victim@example.com\r\n")
	assert.Contains(t, gotMsg, "Date: Mon, 01 Jun 2026 09:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nline one\r\nline two"))
}

func TestNewSMTPTransport_NoAuthAndBadAddr(t *testing.T) {
	tr, err := NewSMTPTransport("localhost:25", "", "")
	require.NoError(t, err)
	assert.Nil(t, tr.auth)

	_, err = NewSMTPTransport("localhost", "", "")
	assert.Error(t, err)
}
