package booking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"venuebook/internal/pkg/clock"
)

var ErrInvalidSlotTimes = errors.New("slot end time must be after start time")

// Slot is one reservable interval at a space: a civil date plus a
// [startTime, endTime) range in "HH:MM" wall-clock form.
type Slot struct {
	date      time.Time
	startTime string
	endTime   string
	dayOfWeek time.Weekday
}

func NewSlot(date time.Time, startTime, endTime string) (Slot, error) {
	start, err := minutesOfDay(startTime)
	if err != nil {
		return Slot{}, err
	}
	end, err := minutesOfDay(endTime)
	if err != nil {
		return Slot{}, err
	}
	if end <= start {
		return Slot{}, ErrInvalidSlotTimes
	}

	d := clock.Midnight(date)
	return Slot{
		date:      d,
		startTime: startTime,
		endTime:   endTime,
		dayOfWeek: d.Weekday(),
	}, nil
}

func (s Slot) Date() time.Time         { return s.date }
func (s Slot) StartTime() string       { return s.startTime }
func (s Slot) EndTime() string         { return s.endTime }
func (s Slot) DayOfWeek() time.Weekday { return s.dayOfWeek }

// Overlaps reports whether two slots share a calendar date and their
// half-open time ranges intersect.
func (s Slot) Overlaps(other Slot) bool {
	if !clock.SameDate(s.date, other.date) {
		return false
	}
	aStart, _ := minutesOfDay(s.startTime)
	aEnd, _ := minutesOfDay(s.endTime)
	bStart, _ := minutesOfDay(other.startTime)
	bEnd, _ := minutesOfDay(other.endTime)
	return aStart < bEnd && bStart < aEnd
}

// OverlapsAny reports whether any pair across the two slot lists overlaps.
func OverlapsAny(a, b []Slot) bool {
	for _, sa := range a {
		for _, sb := range b {
			if sa.Overlaps(sb) {
				return true
			}
		}
	}
	return false
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s-%s", s.date.Format("2006-01-02"), s.startTime, s.endTime)
}

func minutesOfDay(hhmm string) (int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	return h*60 + m, nil
}
