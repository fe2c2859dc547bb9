// Package availability derives the bookable slots of a day from opening
// hours, closed dates and the occupancy index.
//
// Slots are 30-minute start times. A booking lasts 90 minutes but only
// occupies its own start slot: adjacent slots stay bookable because the venue
// seats several parties at once and table inventory is not modelled.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/tablebooking/internal/calendar"
)

type OpeningHours struct {
	Open              string `json:"open"`
	Close             string `json:"close"`
	LastBookableStart string `json:"lastSlot"`
}

var DefaultOpeningHours = OpeningHours{
	Open:              "06:30",
	Close:             "14:30",
	LastBookableStart: "13:00",
}

// Settings is the per-request snapshot of venue configuration.
type Settings struct {
	Hours       OpeningHours
	ClosedDates map[string]struct{}
}

func DefaultSettings() Settings {
	return Settings{Hours: DefaultOpeningHours, ClosedDates: map[string]struct{}{}}
}

func (s Settings) IsClosed(date string) bool {
	_, ok := s.ClosedDates[date]
	return ok
}

type SettingsStore interface {
	LoadSettings(ctx context.Context) (Settings, error)
}

// OccupancyReader reports which of the given times on date hold a confirmed
// reservation.
type OccupancyReader interface {
	OccupiedSlots(ctx context.Context, date string, times []string) (map[string]bool, error)
}

// ComputeAvailableSlots returns the free slot times of date in ascending
// order. Dates on or before today and closed dates have no slots.
func ComputeAvailableSlots(date, today string, settings Settings, occupied map[string]bool) ([]string, error) {
	if !IsBookableDate(date, today, settings) {
		return []string{}, nil
	}
	grid, err := calendar.SlotGrid(settings.Hours.Open, settings.Hours.LastBookableStart)
	if err != nil {
		return nil, err
	}
	available := make([]string, 0, len(grid))
	for _, slot := range grid {
		if !occupied[slot] {
			available = append(available, slot)
		}
	}
	return available, nil
}

// IsBookableDate reports whether date is strictly after today and not closed.
// Both dates are YYYY-MM-DD, so string order is calendar order.
func IsBookableDate(date, today string, settings Settings) bool {
	return date > today && !settings.IsClosed(date)
}

type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type Calculator struct {
	settings  SettingsStore
	occupancy OccupancyReader
	loc       *time.Location
	now       func() time.Time
}

type Option func(*Calculator)

func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

func NewCalculator(settings SettingsStore, occupancy OccupancyReader, loc *time.Location, opts ...Option) *Calculator {
	c := &Calculator{settings: settings, occupancy: occupancy, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Slots returns the whole grid of date with an availability flag per slot.
// A date that cannot be booked at all yields an empty list.
func (c *Calculator) Slots(ctx context.Context, date string) ([]Slot, error) {
	if _, err := calendar.ParseDate(date, c.loc); err != nil {
		return nil, err
	}
	settings, err := c.settings.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	today := calendar.Today(c.now(), c.loc)
	if !IsBookableDate(date, today, settings) {
		return []Slot{}, nil
	}

	grid, err := calendar.SlotGrid(settings.Hours.Open, settings.Hours.LastBookableStart)
	if err != nil {
		return nil, fmt.Errorf("opening hours: %w", err)
	}
	occupied, err := c.occupancy.OccupiedSlots(ctx, date, grid)
	if err != nil {
		return nil, fmt.Errorf("read occupancy: %w", err)
	}
	available, err := ComputeAvailableSlots(date, today, settings, occupied)
	if err != nil {
		return nil, err
	}

	free := make(map[string]bool, len(available))
	for _, t := range available {
		free[t] = true
	}
	slots := make([]Slot, 0, len(grid))
	for _, t := range grid {
		slots = append(slots, Slot{Time: t, Available: free[t]})
	}
	return slots, nil
}

// AvailableSlots returns only the free slot times of date.
func (c *Calculator) AvailableSlots(ctx context.Context, date string) ([]string, error) {
	slots, err := c.Slots(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s.Time)
		}
	}
	return out, nil
}

// IsAvailable reports whether the slot at hhmm on date can be booked now.
func (c *Calculator) IsAvailable(ctx context.Context, date, hhmm string) (bool, error) {
	slots, err := c.AvailableSlots(ctx, date)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s == hhmm {
			return true, nil
		}
	}
	return false, nil
}
