package queries

import (
	"context"
	"time"

	"venuebook/internal/domain/schedule"
	"venuebook/internal/infra"
	"venuebook/internal/pkg/clock"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
)

// How far ahead the calendar is offered to clients.
const availabilityHorizonDays = 60

type BookedSlotView struct {
	BookingID uuid.UUID `json:"bookingId"`
	Date      string    `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Status    string    `json:"status"`
}

// AvailabilityView is everything a client needs to render the calendar:
// bookable dates, start times for the requested date, what is already taken,
// and the space's raw operating-hours configuration.
type AvailabilityView struct {
	SpaceID         uuid.UUID                    `json:"spaceId"`
	AvailableDates  []string                     `json:"availableDates"`
	StartTimes      []string                     `json:"startTimes,omitempty"`
	BookedSlots     []BookedSlotView             `json:"bookedSlots"`
	WorkingHours    map[string]schedule.DayHours `json:"workingHours"`
	MinBookingHours int                          `json:"minBookingHours"`
	CooldownMinutes int                          `json:"cooldownMinutes"`
}

type AvailabilityQueries interface {
	GetSpaceAvailability(ctx context.Context, spaceID uuid.UUID, date *time.Time) (*AvailabilityView, error)
}

type availabilityQueriesImpl struct {
	uow   shared.UnitOfWork
	clock clock.Clock
}

func NewAvailabilityQueries(uow shared.UnitOfWork, clk clock.Clock) AvailabilityQueries {
	return &availabilityQueriesImpl{uow: uow, clock: clk}
}

func (q *availabilityQueriesImpl) GetSpaceAvailability(ctx context.Context, spaceID uuid.UUID, date *time.Time) (*AvailabilityView, error) {
	repos := q.uow.Repos()

	space, err := repos.Spaces().FindByID(ctx, spaceID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrSpaceNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	cfg := space.Availability

	today := clock.Today(q.clock)
	dates := schedule.AvailableDates(q.clock, today, today.AddDate(0, 0, availabilityHorizonDays), cfg)

	view := &AvailabilityView{
		SpaceID:         space.ID,
		AvailableDates:  formatDates(dates),
		WorkingHours:    hoursByWeekday(cfg),
		MinBookingHours: cfg.MinBookingHours,
		CooldownMinutes: cfg.CooldownMinutes,
		BookedSlots:     []BookedSlotView{},
	}

	if date == nil {
		return view, nil
	}

	starts, err := schedule.AvailableStartTimes(q.clock, *date, cfg)
	if err == nil {
		for _, h := range starts {
			view.StartTimes = append(view.StartTimes, schedule.FormatHour(h))
		}
	}

	live, err := repos.Bookings().FindLiveBySpace(ctx, spaceID, []time.Time{*date})
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	for _, b := range live {
		for _, s := range b.Slots() {
			if !clock.SameDate(s.Date(), *date) {
				continue
			}
			view.BookedSlots = append(view.BookedSlots, BookedSlotView{
				BookingID: b.ID(),
				Date:      s.Date().Format("2006-01-02"),
				StartTime: s.StartTime(),
				EndTime:   s.EndTime(),
				Status:    b.Status().String(),
			})
		}
	}
	return view, nil
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("2006-01-02")
	}
	return out
}

func hoursByWeekday(cfg schedule.Config) map[string]schedule.DayHours {
	out := make(map[string]schedule.DayHours, len(cfg.Hours))
	for day, h := range cfg.Hours {
		out[day.String()] = h
	}
	return out
}
