package queries

import (
	"context"
	"encoding/json"
	"time"

	"venuebook/internal/domain/booking"
	"venuebook/internal/infra"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
)

type SlotView struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	DayOfWeek int    `json:"dayOfWeek"`
}

type BookingView struct {
	ID              uuid.UUID       `json:"id"`
	SpaceID         uuid.UUID       `json:"spaceId"`
	UserID          uuid.UUID       `json:"userId"`
	Status          string          `json:"status"`
	Slots           []SlotView      `json:"slots"`
	TotalPrice      int64           `json:"totalPrice"`
	FinalTotal      int64           `json:"finalTotal"`
	UniqueRequestID string          `json:"uniqueRequestId"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentResponse json.RawMessage `json:"paymentResponse,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type BookingQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*BookingView, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*BookingView, error)
	// ListCompeting returns the other pending bookings whose slots overlap
	// the given booking, for the host to review before selecting one.
	ListCompeting(ctx context.Context, bookingID uuid.UUID) ([]*BookingView, error)
}

type bookingQueriesImpl struct {
	uow shared.UnitOfWork
}

func NewBookingQueries(uow shared.UnitOfWork) BookingQueries {
	return &bookingQueriesImpl{uow: uow}
}

func (q *bookingQueriesImpl) GetByID(ctx context.Context, id uuid.UUID) (*BookingView, error) {
	b, err := q.uow.Repos().Bookings().FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrBookingNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return BookingToView(b), nil
}

func (q *bookingQueriesImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]*BookingView, error) {
	bs, err := q.uow.Repos().Bookings().FindByUser(ctx, userID)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	views := make([]*BookingView, len(bs))
	for i, b := range bs {
		views[i] = BookingToView(b)
	}
	return views, nil
}

func (q *bookingQueriesImpl) ListCompeting(ctx context.Context, bookingID uuid.UUID) ([]*BookingView, error) {
	repos := q.uow.Repos()

	b, err := repos.Bookings().FindByID(ctx, bookingID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrBookingNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	dates := make([]time.Time, 0, len(b.Slots()))
	for _, s := range b.Slots() {
		dates = append(dates, s.Date())
	}

	live, err := repos.Bookings().FindLiveBySpace(ctx, b.SpaceID(), dates)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	var competing []*BookingView
	for _, other := range live {
		if other.ID() == b.ID() || other.Status() != booking.StatusPending {
			continue
		}
		if other.OverlapsSlots(b.Slots()) {
			competing = append(competing, BookingToView(other))
		}
	}
	return competing, nil
}

func BookingToView(b *booking.Booking) *BookingView {
	slots := make([]SlotView, len(b.Slots()))
	for i, s := range b.Slots() {
		slots[i] = SlotView{
			Date:      s.Date().Format("2006-01-02"),
			StartTime: s.StartTime(),
			EndTime:   s.EndTime(),
			DayOfWeek: int(s.DayOfWeek()),
		}
	}
	return &BookingView{
		ID:              b.ID(),
		SpaceID:         b.SpaceID(),
		UserID:          b.UserID(),
		Status:          b.Status().String(),
		Slots:           slots,
		TotalPrice:      b.TotalPrice(),
		FinalTotal:      b.FinalTotal(),
		UniqueRequestID: b.UniqueRequestID(),
		ApprovedAt:      b.ApprovedAt(),
		PaidAt:          b.PaidAt(),
		PaymentResponse: json.RawMessage(b.PaymentResponse()),
		CreatedAt:       b.CreatedAt(),
	}
}
