package fake

import (
	"context"
	"sync"
	"time"

	"venuebook/internal/domain/booking"
	"venuebook/internal/domain/payment"
	"venuebook/internal/infra"
	"venuebook/internal/pkg/clock"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
)

// UnitOfWork is an in-memory stand-in for the Postgres unit of work. Within
// runs the function directly; there is no rollback, which is fine for tests
// that only assert on the success path or fail before mutating.
type UnitOfWork struct {
	mu           sync.Mutex
	bookings     *BookingRepo
	transactions *TransactionRepo
	spaces       *SpaceRepo
}

func NewUnitOfWork() *UnitOfWork {
	u := &UnitOfWork{}
	u.bookings = &BookingRepo{byID: map[uuid.UUID]*booking.Booking{}}
	u.transactions = &TransactionRepo{byID: map[uuid.UUID]*payment.Transaction{}}
	u.spaces = &SpaceRepo{byID: map[uuid.UUID]*shared.SpaceSnapshot{}}
	return u
}

func (u *UnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return fn(ctx, u)
}

func (u *UnitOfWork) Repos() shared.Repos { return u }

func (u *UnitOfWork) Bookings() shared.BookingRepository         { return u.bookings }
func (u *UnitOfWork) Transactions() shared.TransactionRepository { return u.transactions }
func (u *UnitOfWork) Spaces() shared.SpaceRepository             { return u.spaces }

// Seed helpers for test arrangement.

func (u *UnitOfWork) SeedBooking(b *booking.Booking)         { u.bookings.byID[b.ID()] = b }
func (u *UnitOfWork) SeedTransaction(t *payment.Transaction) { u.transactions.byID[t.ID()] = t }
func (u *UnitOfWork) SeedSpace(s *shared.SpaceSnapshot)      { u.spaces.byID[s.ID] = s }

func notFound(msg string) error {
	return infra.WrapRepoErr(msg, nil, infra.KindNotFound)
}

type BookingRepo struct {
	byID map[uuid.UUID]*booking.Booking
}

func (r *BookingRepo) Create(_ context.Context, b *booking.Booking) error {
	r.byID[b.ID()] = b
	return nil
}

func (r *BookingRepo) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	b, ok := r.byID[id]
	if !ok {
		return nil, notFound("booking not found")
	}
	return b, nil
}

func (r *BookingRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	return r.FindByID(ctx, id)
}

func (r *BookingRepo) FindLiveBySpace(_ context.Context, spaceID uuid.UUID, dates []time.Time) ([]*booking.Booking, error) {
	var out []*booking.Booking
	for _, b := range r.byID {
		if b.SpaceID() != spaceID || !b.Status().IsLive() {
			continue
		}
		if touchesAny(b, dates) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *BookingRepo) FindLiveBySpaceForUpdate(ctx context.Context, spaceID uuid.UUID, dates []time.Time) ([]*booking.Booking, error) {
	return r.FindLiveBySpace(ctx, spaceID, dates)
}

func (r *BookingRepo) FindByUser(_ context.Context, userID uuid.UUID) ([]*booking.Booking, error) {
	var out []*booking.Booking
	for _, b := range r.byID {
		if b.UserID() == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *BookingRepo) Save(_ context.Context, b *booking.Booking) error {
	if _, ok := r.byID[b.ID()]; !ok {
		return notFound("booking not found")
	}
	r.byID[b.ID()] = b
	return nil
}

func touchesAny(b *booking.Booking, dates []time.Time) bool {
	for _, s := range b.Slots() {
		for _, d := range dates {
			if clock.SameDate(s.Date(), d) {
				return true
			}
		}
	}
	return false
}

type TransactionRepo struct {
	byID map[uuid.UUID]*payment.Transaction
}

func (r *TransactionRepo) Create(_ context.Context, t *payment.Transaction) error {
	for _, other := range r.byID {
		if other.Provider() != t.Provider() {
			continue
		}
		if other.BookingID() == t.BookingID() {
			return infra.WrapRepoErr("transaction already exists", nil, infra.KindDuplicateKey)
		}
		if t.ProviderTxID() != "" && other.ProviderTxID() == t.ProviderTxID() {
			return infra.WrapRepoErr("transaction already exists", nil, infra.KindDuplicateKey)
		}
	}
	r.byID[t.ID()] = t
	return nil
}

func (r *TransactionRepo) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*payment.Transaction, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, notFound("transaction not found")
	}
	return t, nil
}

func (r *TransactionRepo) FindByProviderTxID(_ context.Context, provider payment.Provider, providerTxID string) (*payment.Transaction, error) {
	for _, t := range r.byID {
		if t.Provider() == provider && t.ProviderTxID() == providerTxID && providerTxID != "" {
			return t, nil
		}
	}
	return nil, notFound("transaction not found")
}

func (r *TransactionRepo) FindByProviderTxIDForUpdate(ctx context.Context, provider payment.Provider, providerTxID string) (*payment.Transaction, error) {
	return r.FindByProviderTxID(ctx, provider, providerTxID)
}

func (r *TransactionRepo) FindByBooking(_ context.Context, provider payment.Provider, bookingID uuid.UUID) (*payment.Transaction, error) {
	for _, t := range r.byID {
		if t.Provider() == provider && t.BookingID() == bookingID {
			return t, nil
		}
	}
	return nil, notFound("transaction not found")
}

func (r *TransactionRepo) FindByBookingForUpdate(ctx context.Context, provider payment.Provider, bookingID uuid.UUID) (*payment.Transaction, error) {
	return r.FindByBooking(ctx, provider, bookingID)
}

func (r *TransactionRepo) HasPaidForBooking(_ context.Context, bookingID uuid.UUID) (bool, error) {
	for _, t := range r.byID {
		if t.BookingID() == bookingID && t.State() == payment.StatePaid {
			return true, nil
		}
	}
	return false, nil
}

func (r *TransactionRepo) Save(_ context.Context, t *payment.Transaction) error {
	if _, ok := r.byID[t.ID()]; !ok {
		return notFound("transaction not found")
	}
	r.byID[t.ID()] = t
	return nil
}

type SpaceRepo struct {
	byID map[uuid.UUID]*shared.SpaceSnapshot
}

func (r *SpaceRepo) FindByID(_ context.Context, id uuid.UUID) (*shared.SpaceSnapshot, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, notFound("space not found")
	}
	return s, nil
}
