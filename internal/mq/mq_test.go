package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/Domenick1991/tablebooking/internal/notify"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	tag     uint64
	acked   bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, acked: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encode(t *testing.T, ev notify.Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: "reservations.exchange"}
	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	ev := notify.ReservationCancelled(&domain.Reservation{ID: "R-AB3D2"}, at)
	require.NoError(t, p.Publish(context.Background(), ev))

	assert.Equal(t, "reservations.exchange", ch.exchange)
	assert.Equal(t, notify.TypeReservationCancelled, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "R-AB3D2", ch.msg.MessageId)

	got, err := notify.Decode(ch.msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "R-AB3D2", got.Reservation.ID)
}

func TestConsumer_Run(t *testing.T) {
	ack := &fakeAcknowledger{}
	c := &Consumer{logger: discardLogger()}
	contact := encode(t, notify.ContactMessage(notify.Contact{Email: "a@b.c"}, time.Now()))
	cancelled := encode(t, notify.ReservationCancelled(&domain.Reservation{ID: "R-AB3D2"}, time.Now()))

	msgs := make(chan amqp.Delivery, 4)
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: cancelled}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("garbage")}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: contact}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 4, Body: contact, Redelivered: true}
	close(msgs)

	var handled []string
	err := c.run(context.Background(), msgs, func(_ context.Context, ev notify.Event) error {
		handled = append(handled, ev.Type)
		if ev.Type == notify.TypeContactMessage {
			return errors.New("smtp down")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{notify.TypeReservationCancelled, notify.TypeContactMessage, notify.TypeContactMessage}, handled)
	assert.Equal(t, []ackRecord{
		{tag: 1, acked: true},
		{tag: 2, requeue: false},
		{tag: 3, requeue: true},
		{tag: 4, requeue: false},
	}, ack.records)
}

func TestConsumer_Run_StopsOnCancel(t *testing.T) {
	c := &Consumer{logger: discardLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.run(ctx, make(chan amqp.Delivery), func(context.Context, notify.Event) error { return nil })
	assert.NoError(t, err)
}
