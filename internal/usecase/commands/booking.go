package commands

import (
	"context"
	"fmt"
	"time"

	"venuebook/internal/domain/booking"
	"venuebook/internal/domain/schedule"
	"venuebook/internal/infra"
	"venuebook/internal/pkg/clock"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
)

// ConflictError carries the specific conflicting booking/slot so the caller
// can show it, instead of a bare error string.
type ConflictError struct {
	BookingID uuid.UUID
	Slot      booking.Slot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflict with booking %s at %s", e.BookingID, e.Slot)
}

func (e *ConflictError) Is(target error) bool {
	return target == errs.ErrSlotConflict
}

type SlotParams struct {
	Date      time.Time
	StartTime string
	EndTime   string
}

type CreateBookingParams struct {
	SpaceID uuid.UUID
	UserID  uuid.UUID
	Slots   []SlotParams
}

type SelectResult struct {
	Booking  *booking.Booking
	Rejected []uuid.UUID
}

type BookingCommands interface {
	CreateBooking(ctx context.Context, params CreateBookingParams) (*booking.Booking, error)
	// SelectBooking moves one pending booking to selected and rejects every
	// overlapping pending competitor as a single atomic unit.
	SelectBooking(ctx context.Context, bookingID uuid.UUID, actor booking.Actor) (*SelectResult, error)
	ApproveBooking(ctx context.Context, bookingID uuid.UUID, actor booking.Actor, override bool) (*booking.Booking, error)
	RejectBooking(ctx context.Context, bookingID uuid.UUID, actor booking.Actor) (*booking.Booking, error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID, actor booking.Actor) (*booking.Booking, error)
}

type bookingUseCaseImpl struct {
	uow   shared.UnitOfWork
	clock clock.Clock
}

func NewBookingUseCase(uow shared.UnitOfWork, clk clock.Clock) BookingCommands {
	return &bookingUseCaseImpl{
		uow:   uow,
		clock: clk,
	}
}

func (u *bookingUseCaseImpl) CreateBooking(ctx context.Context, params CreateBookingParams) (*booking.Booking, error) {
	space, err := u.findSpace(ctx, params.SpaceID)
	if err != nil {
		return nil, err
	}

	slots, err := u.validateSlots(space, params.Slots)
	if err != nil {
		return nil, err
	}

	total := priceFor(space, slots)
	entity, err := booking.NewBooking(space.ID, params.UserID, slots, total, total, u.clock.Now())
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDomainValidation)
	}

	err = u.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		// Lock live bookings touching the requested dates so a racing create
		// or select sees a consistent picture.
		live, err := tx.Bookings().FindLiveBySpaceForUpdate(ctx, space.ID, slotDates(slots))
		if err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		// Competing pending requests are allowed; a slot already selected or
		// approved is not.
		if conflict := findDecidedConflict(live, slots, uuid.Nil); conflict != nil {
			return conflict
		}
		return tx.Bookings().Create(ctx, entity)
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (u *bookingUseCaseImpl) SelectBooking(ctx context.Context, bookingID uuid.UUID, actor booking.Actor) (*SelectResult, error) {
	result := &SelectResult{}
	err := u.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		b, err := u.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		live, err := tx.Bookings().FindLiveBySpaceForUpdate(ctx, b.SpaceID(), slotDates(b.Slots()))
		if err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		if conflict := findDecidedConflict(live, b.Slots(), b.ID()); conflict != nil {
			return conflict
		}

		now := u.clock.Now()
		if err := b.Select(actor, now); err != nil {
			return mapDomainErr(err)
		}
		if err := tx.Bookings().Save(ctx, b); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}

		result.Booking = b
		for _, other := range live {
			if other.ID() == b.ID() || other.Status() != booking.StatusPending {
				continue
			}
			if !other.OverlapsSlots(b.Slots()) {
				continue
			}
			if err := other.Reject(actor, now); err != nil {
				return mapDomainErr(err)
			}
			if err := tx.Bookings().Save(ctx, other); err != nil {
				return errs.Mark(err, errs.ErrDatabaseOperationFailed)
			}
			result.Rejected = append(result.Rejected, other.ID())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (u *bookingUseCaseImpl) ApproveBooking(ctx context.Context, bookingID uuid.UUID, actor booking.Actor, override bool) (*booking.Booking, error) {
	var approved *booking.Booking
	err := u.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		b, err := u.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		hasPaid, err := tx.Transactions().HasPaidForBooking(ctx, b.ID())
		if err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}

		if err := b.Approve(actor, hasPaid, override, u.clock.Now()); err != nil {
			return mapDomainErr(err)
		}
		if err := tx.Bookings().Save(ctx, b); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		approved = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (u *bookingUseCaseImpl) RejectBooking(ctx context.Context, bookingID uuid.UUID, actor booking.Actor) (*booking.Booking, error) {
	return u.transition(ctx, bookingID, func(b *booking.Booking) error {
		return b.Reject(actor, u.clock.Now())
	})
}

func (u *bookingUseCaseImpl) CancelBooking(ctx context.Context, bookingID uuid.UUID, actor booking.Actor) (*booking.Booking, error) {
	return u.transition(ctx, bookingID, func(b *booking.Booking) error {
		return b.Cancel(actor, u.clock.Now())
	})
}

func (u *bookingUseCaseImpl) transition(ctx context.Context, bookingID uuid.UUID, apply func(*booking.Booking) error) (*booking.Booking, error) {
	var result *booking.Booking
	err := u.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		b, err := u.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if err := apply(b); err != nil {
			return mapDomainErr(err)
		}
		if err := tx.Bookings().Save(ctx, b); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (u *bookingUseCaseImpl) lockBooking(ctx context.Context, tx shared.Tx, id uuid.UUID) (*booking.Booking, error) {
	b, err := tx.Bookings().FindByIDForUpdate(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrBookingNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return b, nil
}

func (u *bookingUseCaseImpl) findSpace(ctx context.Context, id uuid.UUID) (*shared.SpaceSnapshot, error) {
	space, err := u.uow.Repos().Spaces().FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrSpaceNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return space, nil
}

// validateSlots runs each requested slot through the availability engine:
// open weekday, inside working hours, minimum duration met, and for today
// not already started.
func (u *bookingUseCaseImpl) validateSlots(space *shared.SpaceSnapshot, params []SlotParams) ([]booking.Slot, error) {
	if len(params) == 0 {
		return nil, errs.Mark(errs.New("no slots requested"), errs.ErrInvalidSlot)
	}

	cfg := space.Availability
	slots := make([]booking.Slot, 0, len(params))
	for _, p := range params {
		s, err := booking.NewSlot(p.Date, p.StartTime, p.EndTime)
		if err != nil {
			return nil, errs.Mark(err, errs.ErrInvalidSlot)
		}

		if clock.IsPastDate(u.clock, s.Date()) {
			return nil, errs.Mark(errs.Newf("date %s is in the past", s.Date().Format("2006-01-02")), errs.ErrSlotUnavailable)
		}

		starts, err := schedule.AvailableStartTimes(u.clock, s.Date(), cfg)
		if err != nil {
			return nil, errs.Mark(err, errs.ErrSlotUnavailable)
		}
		startHour, err := schedule.ParseHour(s.StartTime())
		if err != nil {
			return nil, errs.Mark(err, errs.ErrInvalidSlot)
		}
		endHour, err := schedule.ParseHour(s.EndTime())
		if err != nil {
			return nil, errs.Mark(err, errs.ErrInvalidSlot)
		}
		if !containsHour(starts, startHour) {
			return nil, errs.Mark(errs.Newf("start time %s is not available", s.StartTime()), errs.ErrSlotUnavailable)
		}
		if endHour-startHour < cfg.MinBookingHours {
			return nil, errs.Mark(errs.Newf("booking shorter than the %dh minimum", cfg.MinBookingHours), errs.ErrSlotUnavailable)
		}
		hours, _ := cfg.HoursFor(s.Date().Weekday())
		closeHour, err := schedule.ParseHour(hours.End)
		if err != nil {
			return nil, errs.Mark(err, errs.ErrSlotUnavailable)
		}
		if endHour > closeHour {
			return nil, errs.Mark(errs.Newf("end time %s is past closing", s.EndTime()), errs.ErrSlotUnavailable)
		}

		slots = append(slots, s)
	}
	return slots, nil
}

// findDecidedConflict returns the first overlap against a booking the host
// has already decided on (selected/approved). Pending overlaps are competing
// requests, not conflicts.
func findDecidedConflict(live []*booking.Booking, slots []booking.Slot, exclude uuid.UUID) error {
	for _, other := range live {
		if other.ID() == exclude {
			continue
		}
		if other.Status() != booking.StatusSelected && other.Status() != booking.StatusApproved {
			continue
		}
		for _, os := range other.Slots() {
			for _, s := range slots {
				if os.Overlaps(s) {
					return &ConflictError{BookingID: other.ID(), Slot: os}
				}
			}
		}
	}
	return nil
}

func slotDates(slots []booking.Slot) []time.Time {
	dates := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		dates = append(dates, s.Date())
	}
	return dates
}

func priceFor(space *shared.SpaceSnapshot, slots []booking.Slot) int64 {
	var hours int
	for _, s := range slots {
		start, _ := schedule.ParseHour(s.StartTime())
		end, _ := schedule.ParseHour(s.EndTime())
		hours += end - start
	}
	return int64(hours) * space.HourPrice
}

func containsHour(hours []int, h int) bool {
	for _, v := range hours {
		if v == h {
			return true
		}
	}
	return false
}

func mapDomainErr(err error) error {
	switch err {
	case booking.ErrAlreadyFinalized:
		return errs.Mark(err, errs.ErrAlreadyFinalized)
	case booking.ErrPaymentConfirmationRequired:
		return errs.Mark(err, errs.ErrPaymentConfirmation)
	case booking.ErrNotOwner, booking.ErrHostOnly:
		return errs.Mark(err, errs.ErrNotBookingOwner)
	default:
		return errs.Mark(err, errs.ErrDomainValidation)
	}
}
