package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PgxIface is the subset of *pgxpool.Pool the repository uses.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGReservationRepository relies on the partial unique index over
// (slot_date, slot_time) for confirmed rows, so the insert itself is the
// compare-and-swap.
type PGReservationRepository struct {
	db  PgxIface
	loc *time.Location
}

func NewPGReservationRepository(db PgxIface, loc *time.Location) *PGReservationRepository {
	return &PGReservationRepository{db: db, loc: loc}
}

const reservationColumns = `id, created_at, name, phone, email, party_size, start_at, duration_minutes, note, status, ip_hash, request_id`

// Migrate applies the embedded schema files in name order.
func Migrate(ctx context.Context, db PgxIface) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

func (r *PGReservationRepository) Reserve(ctx context.Context, res *domain.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `INSERT INTO reservations
		(id, created_at, name, phone, email, party_size, start_at, slot_date, slot_time, duration_minutes, note, status, ip_hash, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT DO NOTHING`,
		res.ID, res.CreatedAt, res.Customer.Name, res.Customer.Phone, res.Customer.Email, res.PartySize,
		res.StartAt, res.SlotDate(), res.SlotTime(), res.DurationMinutes, res.Note, string(res.Status),
		res.Meta.IPHash, res.Meta.RequestID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing inserted: either the id or the slot was already taken.
	var idTaken bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reservations WHERE id=$1)`, res.ID).Scan(&idTaken); err != nil {
		return err
	}
	if idTaken {
		return domain.ErrDuplicateID
	}
	return domain.ErrSlotTaken
}

func (r *PGReservationRepository) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id)
	res, err := r.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return res, err
}

func (r *PGReservationRepository) Cancel(ctx context.Context, id string) (*domain.Reservation, bool, error) {
	row := r.db.QueryRow(ctx, `UPDATE reservations SET status=$1, updated_at=now()
		WHERE id=$2 AND status=$3
		RETURNING `+reservationColumns,
		string(domain.ReservationStatusCancelled), id, string(domain.ReservationStatusConfirmed))
	res, err := r.scan(row)
	if err == nil {
		return res, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Unknown id, or already cancelled.
	res, err = r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return res, false, nil
}

func (r *PGReservationRepository) OccupiedSlots(ctx context.Context, date string, times []string) (map[string]bool, error) {
	wanted := make(map[string]struct{}, len(times))
	for _, t := range times {
		wanted[t] = struct{}{}
	}

	rows, err := r.db.Query(ctx, `SELECT slot_time FROM reservations WHERE slot_date=$1 AND status=$2`,
		date, string(domain.ReservationStatusConfirmed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occupied := make(map[string]bool, len(times))
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		if _, ok := wanted[slot]; ok {
			occupied[slot] = true
		}
	}
	return occupied, rows.Err()
}

func (r *PGReservationRepository) scan(row pgx.Row) (*domain.Reservation, error) {
	var (
		res    domain.Reservation
		status string
	)
	if err := row.Scan(&res.ID, &res.CreatedAt, &res.Customer.Name, &res.Customer.Phone, &res.Customer.Email,
		&res.PartySize, &res.StartAt, &res.DurationMinutes, &res.Note, &status, &res.Meta.IPHash, &res.Meta.RequestID); err != nil {
		return nil, err
	}
	res.Status = domain.ReservationStatus(status)
	res.StartAt = res.StartAt.In(r.loc)
	res.CreatedAt = res.CreatedAt.In(r.loc)
	return &res, nil
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
