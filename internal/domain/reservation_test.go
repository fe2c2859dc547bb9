package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservationID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := NewReservationID()
		require.NoError(t, err)
		assert.Len(t, id, 7)
		assert.True(t, strings.HasPrefix(id, "R-"))
		for _, c := range id[2:] {
			assert.Contains(t, idAlphabet, string(c))
		}
		assert.NotContains(t, id[2:], "0")
		assert.NotContains(t, id[2:], "O")
		assert.NotContains(t, id[2:], "1")
		assert.NotContains(t, id[2:], "I")
		seen[id] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestReservation_SlotDateAndTime(t *testing.T) {
	loc := time.FixedZone("AEST", 10*60*60)
	r := &Reservation{StartAt: time.Date(2026, 6, 20, 9, 0, 0, 0, loc)}

	assert.Equal(t, "2026-06-20", r.SlotDate())
	assert.Equal(t, "09:00", r.SlotTime())
}

func TestReservation_SlotDate_VenueOffsetAcrossMidnightUTC(t *testing.T) {
	loc := time.FixedZone("AEST", 10*60*60)
	// 06:30 local is 20:30 UTC on the previous day.
	r := &Reservation{StartAt: time.Date(2026, 6, 20, 6, 30, 0, 0, loc)}

	assert.Equal(t, "2026-06-20", r.SlotDate())
	assert.Equal(t, "06:30", r.SlotTime())
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: "name", Message: "is required"},
		{Field: "partySize", Message: "must be at most 12"},
	}}

	assert.Equal(t, "validation failed: name: is required; partySize: must be at most 12", err.Error())

	var target *ValidationError
	assert.True(t, errors.As(error(err), &target))
}

func TestRateLimitedError(t *testing.T) {
	err := &RateLimitedError{Scope: "phone", RetryAfter: 3599}
	assert.Equal(t, "rate limit phone exceeded, retry after 3599s", err.Error())
}

func validReservation() *Reservation {
	return &Reservation{
		ID:              "R-AB3D2",
		Customer:        Customer{Name: "Sam Lee", Phone: "0400000000", Email: "sam@example.com"},
		PartySize:       4,
		StartAt:         time.Date(2026, 6, 20, 9, 0, 0, 0, time.FixedZone("AEST", 10*60*60)),
		DurationMinutes: DurationMinutes,
		Status:          ReservationStatusConfirmed,
	}
}

func TestIsValidReservationID(t *testing.T) {
	assert.True(t, IsValidReservationID("R-AB3D2"))
	assert.False(t, IsValidReservationID("R-AB3D"))
	assert.False(t, IsValidReservationID("X-AB3D2"))
	assert.False(t, IsValidReservationID("R-AB0D2"))
	assert.False(t, IsValidReservationID("R-ab3d2"))
}

func TestReservation_Validate(t *testing.T) {
	assert.NoError(t, validReservation().Validate())

	tests := []struct {
		name   string
		mutate func(r *Reservation)
		field  string
	}{
		{"bad id", func(r *Reservation) { r.ID = "nope" }, "id"},
		{"blank name", func(r *Reservation) { r.Customer.Name = "  " }, "name"},
		{"party too small", func(r *Reservation) { r.PartySize = 0 }, "partySize"},
		{"party too large", func(r *Reservation) { r.PartySize = 13 }, "partySize"},
		{"off grid", func(r *Reservation) { r.StartAt = r.StartAt.Add(15 * time.Minute) }, "time"},
		{"zero start", func(r *Reservation) { r.StartAt = time.Time{} }, "time"},
		{"wrong duration", func(r *Reservation) { r.DurationMinutes = 60 }, "durationMinutes"},
		{"cancelled", func(r *Reservation) { r.Status = ReservationStatusCancelled }, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReservation()
			tt.mutate(r)

			var verr *ValidationError
			require.ErrorAs(t, r.Validate(), &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}
