package clock

import "time"

// Clock supplies "now" in the civil time zone the venues operate in.
// All date/hour comparisons in the booking core go through it so tests
// can pin the instant.
type Clock interface {
	Now() time.Time
}

type RegionClock struct {
	loc *time.Location
}

// NewRegionClock pins the clock to the given IANA zone, e.g. "Asia/Tashkent".
// The host machine's zone never leaks into availability decisions.
func NewRegionClock(zone string) (*RegionClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, err
	}
	return &RegionClock{loc: loc}, nil
}

func (c *RegionClock) Now() time.Time {
	return time.Now().In(c.loc)
}

type MockClock struct {
	currentTime time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

func (c *MockClock) Now() time.Time {
	return c.currentTime
}

func (c *MockClock) Set(t time.Time) {
	c.currentTime = t
}

func (c *MockClock) Add(d time.Duration) {
	c.currentTime = c.currentTime.Add(d)
}

// Today returns the current civil date with the time part zeroed.
func Today(c Clock) time.Time {
	return Midnight(c.Now())
}

// Midnight truncates t to its civil date, keeping the location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsPastDate reports whether date falls strictly before the clock's current
// civil date. Comparison is by calendar date, not elapsed time, so "today"
// at 23:59 local is never past.
func IsPastDate(c Clock, date time.Time) bool {
	return Midnight(date).Before(Today(c))
}

// NextFullHour returns the first whole hour at or after t.
func NextFullHour(t time.Time) int {
	if t.Minute() > 0 || t.Second() > 0 || t.Nanosecond() > 0 {
		return t.Hour() + 1
	}
	return t.Hour()
}

func SameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
