package repository

import (
	"context"

	"github.com/Domenick1991/tablebooking/internal/domain"
)

type ReservationRepository interface {
	// Reserve persists a new confirmed reservation and claims its slot in one
	// atomic step. It fails with domain.ErrSlotTaken when the slot already
	// holds a confirmed reservation and domain.ErrDuplicateID when the id is
	// in use.
	Reserve(ctx context.Context, res *domain.Reservation) error
	Get(ctx context.Context, id string) (*domain.Reservation, error)
	// Cancel moves a reservation to cancelled. It is idempotent; changed is
	// false when the reservation was already cancelled.
	Cancel(ctx context.Context, id string) (res *domain.Reservation, changed bool, err error)
	// OccupiedSlots reports which of times on date hold a confirmed
	// reservation.
	OccupiedSlots(ctx context.Context, date string, times []string) (map[string]bool, error)
}
