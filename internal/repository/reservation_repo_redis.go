package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultSlotIndexTTL = 30 * 24 * time.Hour
	maxTxAttempts       = 10
)

// RedisReservationRepository stores reservations as JSON under
// reservation:{id} and keeps a slot index slot:{date}:{time} holding the ids
// booked into each slot. Reserve runs as a WATCH/MULTI transaction on both
// keys, so of several concurrent callers for one slot exactly one commits.
type RedisReservationRepository struct {
	client       *redis.Client
	slotIndexTTL time.Duration
}

type RedisOption func(*RedisReservationRepository)

// WithSlotIndexTTL sets how long a slot index outlives the slot start.
func WithSlotIndexTTL(ttl time.Duration) RedisOption {
	return func(r *RedisReservationRepository) {
		if ttl > 0 {
			r.slotIndexTTL = ttl
		}
	}
}

func NewRedisReservationRepository(client *redis.Client, opts ...RedisOption) *RedisReservationRepository {
	r := &RedisReservationRepository{client: client, slotIndexTTL: defaultSlotIndexTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisReservationRepository) Reserve(ctx context.Context, res *domain.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	resKey := reservationKey(res.ID)
	slot := slotKey(res.SlotDate(), res.SlotTime())
	expireAt := res.StartAt.Add(r.slotIndexTTL)

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, resKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return domain.ErrDuplicateID
		}

		ids, err := readSlotIndex(ctx, tx, slot)
		if err != nil {
			return err
		}
		statuses, err := readStatuses(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, status := range statuses {
			if status == domain.ReservationStatusConfirmed {
				return domain.ErrSlotTaken
			}
		}

		index, err := json.Marshal(append(ids, res.ID))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, resKey, payload, 0)
			pipe.Set(ctx, slot, index, 0)
			pipe.ExpireAt(ctx, slot, expireAt)
			return nil
		})
		return err
	}

	return r.watch(ctx, txf, resKey, slot)
}

func (r *RedisReservationRepository) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	return getReservation(ctx, r.client, id)
}

func (r *RedisReservationRepository) Cancel(ctx context.Context, id string) (*domain.Reservation, bool, error) {
	var (
		out     *domain.Reservation
		changed bool
	)
	key := reservationKey(id)
	txf := func(tx *redis.Tx) error {
		res, err := getReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		out, changed = res, false
		if res.Status == domain.ReservationStatusCancelled {
			return nil
		}

		res.Status = domain.ReservationStatusCancelled
		payload, err := json.Marshal(res)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err == nil {
			changed = true
		}
		return err
	}

	if err := r.watch(ctx, txf, key); err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

func (r *RedisReservationRepository) OccupiedSlots(ctx context.Context, date string, times []string) (map[string]bool, error) {
	occupied := make(map[string]bool, len(times))
	if len(times) == 0 {
		return occupied, nil
	}

	keys := make([]string, len(times))
	for i, t := range times {
		keys[i] = slotKey(date, t)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read slot index: %w", err)
	}

	idsByTime := make(map[string][]string, len(times))
	var all []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			continue
		}
		idsByTime[times[i]] = ids
		all = append(all, ids...)
	}

	statuses, err := readStatuses(ctx, r.client, all)
	if err != nil {
		return nil, err
	}
	for t, ids := range idsByTime {
		for _, id := range ids {
			if statuses[id] == domain.ReservationStatusConfirmed {
				occupied[t] = true
				break
			}
		}
	}
	return occupied, nil
}

func (r *RedisReservationRepository) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxAttempts; i++ {
		err := r.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("transaction on %v: %w", keys, redis.TxFailedErr)
}

// keyReader is the read surface shared by *redis.Client and *redis.Tx.
type keyReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func getReservation(ctx context.Context, c keyReader, id string) (*domain.Reservation, error) {
	raw, err := c.Get(ctx, reservationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var res domain.Reservation
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode reservation %s: %w", id, err)
	}
	return &res, nil
}

func readSlotIndex(ctx context.Context, c keyReader, key string) ([]string, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode slot index %s: %w", key, err)
	}
	return ids, nil
}

// readStatuses returns the status of each listed reservation that still
// exists.
func readStatuses(ctx context.Context, c keyReader, ids []string) (map[string]domain.ReservationStatus, error) {
	statuses := make(map[string]domain.ReservationStatus, len(ids))
	if len(ids) == 0 {
		return statuses, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = reservationKey(id)
	}
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read reservations: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var res struct {
			Status domain.ReservationStatus `json:"status"`
		}
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			continue
		}
		statuses[ids[i]] = res.Status
	}
	return statuses, nil
}

func reservationKey(id string) string {
	return "reservation:" + id
}

func slotKey(date, hhmm string) string {
	return "slot:" + date + ":" + hhmm
}

var _ ReservationRepository = (*RedisReservationRepository)(nil)
