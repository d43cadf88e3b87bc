package builder

import (
	"time"

	"venuebook/internal/domain/booking"
	"venuebook/internal/domain/schedule"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
)

// Default test date: a Monday far enough in the future to never be "past".
var DefaultDate = time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

// MustSlot builds a slot or panics; test fixtures only.
func MustSlot(date time.Time, start, end string) booking.Slot {
	s, err := booking.NewSlot(date, start, end)
	if err != nil {
		panic(err)
	}
	return s
}

type BookingBuilder struct {
	id         uuid.UUID
	spaceID    uuid.UUID
	userID     uuid.UUID
	slots      []booking.Slot
	status     booking.Status
	totalPrice int64
	finalTotal int64
	paidAt     *time.Time
	createdAt  time.Time
}

func NewBookingBuilder() *BookingBuilder {
	return &BookingBuilder{
		id:         uuid.New(),
		spaceID:    uuid.New(),
		userID:     uuid.New(),
		slots:      []booking.Slot{MustSlot(DefaultDate, "10:00", "12:00")},
		status:     booking.StatusPending,
		totalPrice: 200_000,
		finalTotal: 200_000,
		createdAt:  time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (b *BookingBuilder) WithID(id uuid.UUID) *BookingBuilder          { b.id = id; return b }
func (b *BookingBuilder) WithSpace(id uuid.UUID) *BookingBuilder       { b.spaceID = id; return b }
func (b *BookingBuilder) WithUser(id uuid.UUID) *BookingBuilder        { b.userID = id; return b }
func (b *BookingBuilder) WithStatus(s booking.Status) *BookingBuilder  { b.status = s; return b }
func (b *BookingBuilder) WithSlots(ss ...booking.Slot) *BookingBuilder { b.slots = ss; return b }
func (b *BookingBuilder) WithFinalTotal(v int64) *BookingBuilder {
	b.totalPrice = v
	b.finalTotal = v
	return b
}
func (b *BookingBuilder) WithPaidAt(t time.Time) *BookingBuilder { b.paidAt = &t; return b }

func (b *BookingBuilder) Build() *booking.Booking {
	var approvedAt *time.Time
	if b.status == booking.StatusApproved {
		t := b.createdAt.Add(time.Hour)
		approvedAt = &t
	}
	return booking.ReconstructBooking(
		b.id, b.spaceID, b.userID,
		b.slots, b.status,
		b.totalPrice, b.finalTotal,
		"TESTREQ1",
		approvedAt, b.paidAt,
		false, nil,
		b.createdAt, b.createdAt,
	)
}

// NewScheduleConfig is the baseline availability used across tests: open
// every day 09:00-17:00, two hour minimum, 30 minute cooldown.
func NewScheduleConfig() schedule.Config {
	hours := make(map[time.Weekday]schedule.DayHours, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours[d] = schedule.DayHours{Start: "09:00", End: "17:00"}
	}
	return schedule.Config{
		Hours:           hours,
		MinBookingHours: 2,
		CooldownMinutes: 30,
	}
}

type SpaceBuilder struct {
	snapshot shared.SpaceSnapshot
}

func NewSpaceBuilder() *SpaceBuilder {
	return &SpaceBuilder{snapshot: shared.SpaceSnapshot{
		ID:           uuid.New(),
		HostID:       uuid.New(),
		Name:         "Workshop Hall",
		HourPrice:    100_000,
		Currency:     "UZS",
		Availability: NewScheduleConfig(),
	}}
}

func (s *SpaceBuilder) WithID(id uuid.UUID) *SpaceBuilder   { s.snapshot.ID = id; return s }
func (s *SpaceBuilder) WithHost(id uuid.UUID) *SpaceBuilder { s.snapshot.HostID = id; return s }
func (s *SpaceBuilder) WithHourPrice(p int64) *SpaceBuilder { s.snapshot.HourPrice = p; return s }

func (s *SpaceBuilder) WithConfig(cfg schedule.Config) *SpaceBuilder {
	s.snapshot.Availability = cfg
	return s
}

func (s *SpaceBuilder) Build() *shared.SpaceSnapshot {
	snap := s.snapshot
	return &snap
}
