package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"venuebook/internal/pkg/clock"
)

var (
	ErrInvalidHours    = errors.New("working hours end must be after start")
	ErrInvalidDuration = errors.New("duration settings cannot be negative")
	ErrClosedDate      = errors.New("space is closed on this date")
)

// DayHours is a space's opening window for one weekday, hour-of-day strings
// as the place configuration stores them ("09:00").
type DayHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Config is the availability configuration owned by a space. Read-only to
// the booking core.
type Config struct {
	Hours           map[time.Weekday]DayHours
	BlockedDates    []time.Time
	BlockedWeekdays []time.Weekday
	MinBookingHours int
	CooldownMinutes int
}

func (c Config) Validate() error {
	if c.MinBookingHours < 0 || c.CooldownMinutes < 0 {
		return ErrInvalidDuration
	}
	for day, h := range c.Hours {
		start, err := ParseHour(h.Start)
		if err != nil {
			return fmt.Errorf("weekday %d: %w", day, err)
		}
		end, err := ParseHour(h.End)
		if err != nil {
			return fmt.Errorf("weekday %d: %w", day, err)
		}
		if end <= start {
			return ErrInvalidHours
		}
	}
	return nil
}

func (c Config) HoursFor(day time.Weekday) (DayHours, bool) {
	h, ok := c.Hours[day]
	return h, ok
}

func (c Config) isBlockedDate(date time.Time) bool {
	for _, d := range c.BlockedDates {
		if clock.SameDate(d, date) {
			return true
		}
	}
	return false
}

func (c Config) isBlockedWeekday(day time.Weekday) bool {
	for _, d := range c.BlockedWeekdays {
		if d == day {
			return true
		}
	}
	return false
}

// AvailableDates walks [from, to] day by day and keeps dates that are not in
// the past, not explicitly blocked, and not on a blocked weekday. The result
// is chronological.
func AvailableDates(clk clock.Clock, from, to time.Time, cfg Config) []time.Time {
	var dates []time.Time
	for d := clock.Midnight(from); !d.After(clock.Midnight(to)); d = d.AddDate(0, 0, 1) {
		if clock.IsPastDate(clk, d) {
			continue
		}
		if cfg.isBlockedDate(d) || cfg.isBlockedWeekday(d.Weekday()) {
			continue
		}
		if _, open := cfg.HoursFor(d.Weekday()); !open {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// AvailableStartTimes enumerates hour-aligned start hours t within the working
// window such that t + MinBookingHours + CooldownMinutes still fits before
// closing. For today the lower bound is additionally raised to the next full
// hour at or after "now"; any other future date is never hour-filtered. A date
// already in the past is closed outright.
func AvailableStartTimes(clk clock.Clock, date time.Time, cfg Config) ([]int, error) {
	if clock.IsPastDate(clk, date) {
		return nil, ErrClosedDate
	}
	hours, open := cfg.HoursFor(date.Weekday())
	if !open || cfg.isBlockedDate(date) || cfg.isBlockedWeekday(date.Weekday()) {
		return nil, ErrClosedDate
	}

	openHour, err := ParseHour(hours.Start)
	if err != nil {
		return nil, err
	}
	closeHour, err := ParseHour(hours.End)
	if err != nil {
		return nil, err
	}

	first := openHour
	now := clk.Now()
	if clock.SameDate(date, now) {
		if next := clock.NextFullHour(now); next > first {
			first = next
		}
	}

	// Latest start must leave room for the minimum booking plus the cooldown
	// applied after it, all before closing.
	var starts []int
	for t := first; t < closeHour; t++ {
		if t*60+cfg.MinBookingHours*60+cfg.CooldownMinutes > closeHour*60 {
			break
		}
		starts = append(starts, t)
	}
	return starts, nil
}

// ParseHour converts an "HH:MM" opening-hours string to an hour of day.
func ParseHour(s string) (int, error) {
	part, _, _ := strings.Cut(s, ":")
	h, err := strconv.Atoi(strings.TrimSpace(part))
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour-of-day %q", s)
	}
	return h, nil
}

// FormatHour renders an hour of day back to the "HH:00" wire format.
func FormatHour(h int) string {
	return fmt.Sprintf("%02d:00", h)
}
