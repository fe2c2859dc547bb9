package domain

import (
	"crypto/rand"
	"strings"
	"time"
)

type ReservationStatus string

const (
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

const (
	// DurationMinutes is fixed for every booking.
	DurationMinutes = 90

	MinPartySize = 1
	MaxPartySize = 12

	idPrefix   = "R-"
	idAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	idLength   = 5
)

// UnknownClientIP stands in for a client address that cannot be determined.
const UnknownClientIP = "unknown"

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Meta is a request fingerprint kept for audit only.
type Meta struct {
	IPHash    string `json:"ipHash"`
	RequestID string `json:"requestId"`
}

type Reservation struct {
	ID              string            `json:"id"`
	CreatedAt       time.Time         `json:"createdAt"`
	Customer        Customer          `json:"customer"`
	PartySize       int               `json:"partySize"`
	StartAt         time.Time         `json:"startAt"`
	DurationMinutes int               `json:"durationMinutes"`
	Note            string            `json:"note"`
	Status          ReservationStatus `json:"status"`
	Meta            Meta              `json:"meta"`
}

// SlotDate is the venue-local calendar date of the booking (YYYY-MM-DD).
func (r *Reservation) SlotDate() string {
	return r.StartAt.Format("2006-01-02")
}

// SlotTime is the venue-local start time of the booking (HH:mm).
func (r *Reservation) SlotTime() string {
	return r.StartAt.Format("15:04")
}

func (r *Reservation) IsConfirmed() bool {
	return r.Status == ReservationStatusConfirmed
}

// IsValidReservationID reports whether id has the "R-XXXXX" shape.
func IsValidReservationID(id string) bool {
	if len(id) != len(idPrefix)+idLength || !strings.HasPrefix(id, idPrefix) {
		return false
	}
	for _, c := range id[len(idPrefix):] {
		if !strings.ContainsRune(idAlphabet, c) {
			return false
		}
	}
	return true
}

// Validate checks the record a store is asked to persist.
func (r *Reservation) Validate() error {
	var fields []FieldError
	if !IsValidReservationID(r.ID) {
		fields = append(fields, FieldError{Field: "id", Message: "malformed reservation id"})
	}
	if strings.TrimSpace(r.Customer.Name) == "" {
		fields = append(fields, FieldError{Field: "name", Message: "name is required"})
	}
	if r.PartySize < MinPartySize || r.PartySize > MaxPartySize {
		fields = append(fields, FieldError{Field: "partySize", Message: "party size must be between 1 and 12"})
	}
	if r.StartAt.IsZero() || r.StartAt.Minute()%30 != 0 || r.StartAt.Second() != 0 || r.StartAt.Nanosecond() != 0 {
		fields = append(fields, FieldError{Field: "time", Message: "start time must be on the 30 minute grid"})
	}
	if r.DurationMinutes != DurationMinutes {
		fields = append(fields, FieldError{Field: "durationMinutes", Message: "duration must be 90 minutes"})
	}
	if r.Status != ReservationStatusConfirmed {
		fields = append(fields, FieldError{Field: "status", Message: "new reservations must be confirmed"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// NewReservationID returns an id such as "R-AB3D2". Ambiguous characters
// (0, O, 1, I) are not used.
func NewReservationID() (string, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := make([]byte, 0, len(idPrefix)+idLength)
	id = append(id, idPrefix...)
	for _, b := range buf {
		// len(idAlphabet) is 32, so the modulo is unbiased.
		id = append(id, idAlphabet[int(b)%len(idAlphabet)])
	}
	return string(id), nil
}
