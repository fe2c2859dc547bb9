package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Domenick1991/tablebooking/config"
	"github.com/Domenick1991/tablebooking/internal/availability"
	"github.com/Domenick1991/tablebooking/internal/calendar"
	"github.com/Domenick1991/tablebooking/internal/ratelimit"
	"github.com/redis/go-redis/v9"
)

const maxTxAttempts = 5

// RedisStore keeps venue settings and rate-limit counters.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Increment performs one fixed-window step on key inside a WATCH transaction
// so concurrent hits are not lost. A counter that cannot be decoded is
// treated as absent.
func (c *RedisStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (ratelimit.Counter, error) {
	var out ratelimit.Counter
	txf := func(tx *redis.Tx) error {
		var current ratelimit.Counter
		found := false
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			found = json.Unmarshal(raw, &current) == nil
		}

		out = ratelimit.NextWindow(current, found, now, window)
		payload, err := json.Marshal(out)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, window)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := c.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return ratelimit.Counter{}, err
	}
	return ratelimit.Counter{}, fmt.Errorf("increment %s: %w", key, redis.TxFailedErr)
}

// LoadSettings reads opening hours and closed dates. Missing or unparsable
// values fall back to the defaults.
func (c *RedisStore) LoadSettings(ctx context.Context) (availability.Settings, error) {
	settings := availability.DefaultSettings()

	values, err := c.client.MGet(ctx, openingHoursKey(), closedDatesKey()).Result()
	if err != nil {
		return availability.Settings{}, err
	}

	if raw, ok := values[0].(string); ok {
		var hours availability.OpeningHours
		if err := json.Unmarshal([]byte(raw), &hours); err != nil || !hoursUsable(hours) {
			c.logger.WarnContext(ctx, "ignoring malformed opening hours", "value", raw)
		} else {
			settings.Hours = hours
		}
	}

	if raw, ok := values[1].(string); ok {
		var dates []string
		if err := json.Unmarshal([]byte(raw), &dates); err != nil {
			c.logger.WarnContext(ctx, "ignoring malformed closed dates", "value", raw)
		} else {
			for _, d := range dates {
				settings.ClosedDates[d] = struct{}{}
			}
		}
	}
	return settings, nil
}

func (c *RedisStore) SetOpeningHours(ctx context.Context, hours availability.OpeningHours) error {
	payload, err := json.Marshal(hours)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, openingHoursKey(), payload, 0).Err()
}

func (c *RedisStore) SetClosedDates(ctx context.Context, dates []string) error {
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)
	payload, err := json.Marshal(sorted)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, closedDatesKey(), payload, 0).Err()
}

// hoursUsable reports whether stored hours yield a slot grid: both bounds
// parse as HH:mm and the last start is not before opening.
func hoursUsable(h availability.OpeningHours) bool {
	open, err := calendar.TimeToMinutes(h.Open)
	if err != nil {
		return false
	}
	last, err := calendar.TimeToMinutes(h.LastBookableStart)
	if err != nil {
		return false
	}
	return open <= last
}

func openingHoursKey() string {
	return "settings:openingHours"
}

func closedDatesKey() string {
	return "settings:closedDates"
}
