package shared

import (
	"context"
	"time"

	"venuebook/internal/domain/booking"
	"venuebook/internal/domain/payment"
	"venuebook/internal/domain/schedule"

	"github.com/google/uuid"
)

// UnitOfWork scopes repository access. Within runs fn inside one database
// transaction with retry on serialization failures; every compound status
// change (select-rejects-competitors, payment reconciliation) goes through it
// so callers never observe half-applied transitions.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Repos gives pool-backed repositories for single reads outside a
	// transaction.
	Repos() Repos
}

type Repos interface {
	Bookings() BookingRepository
	Transactions() TransactionRepository
	Spaces() SpaceRepository
}

// Tx is Repos bound to one open transaction.
type Tx interface {
	Repos
}

type BookingRepository interface {
	Create(ctx context.Context, b *booking.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	// FindByIDForUpdate locks the booking row; status mutations for one
	// booking are serialized on it.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	// FindLiveBySpace returns bookings with live status (pending/selected/
	// approved) for the space whose slots touch any of the given dates.
	FindLiveBySpace(ctx context.Context, spaceID uuid.UUID, dates []time.Time) ([]*booking.Booking, error)
	FindLiveBySpaceForUpdate(ctx context.Context, spaceID uuid.UUID, dates []time.Time) ([]*booking.Booking, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*booking.Booking, error)
	Save(ctx context.Context, b *booking.Booking) error
}

type TransactionRepository interface {
	Create(ctx context.Context, t *payment.Transaction) error
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*payment.Transaction, error)
	FindByProviderTxID(ctx context.Context, provider payment.Provider, providerTxID string) (*payment.Transaction, error)
	FindByProviderTxIDForUpdate(ctx context.Context, provider payment.Provider, providerTxID string) (*payment.Transaction, error)
	// FindByBooking returns the transaction for (provider, bookingID), the
	// prepare-path lookup before the provider's own id is known.
	FindByBooking(ctx context.Context, provider payment.Provider, bookingID uuid.UUID) (*payment.Transaction, error)
	FindByBookingForUpdate(ctx context.Context, provider payment.Provider, bookingID uuid.UUID) (*payment.Transaction, error)
	// HasPaidForBooking reports whether any provider settled this booking.
	HasPaidForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
	Save(ctx context.Context, t *payment.Transaction) error
}

// SpaceSnapshot is the read model of the space/place entity this core needs:
// ownership, pricing, and the availability configuration.
type SpaceSnapshot struct {
	ID           uuid.UUID
	HostID       uuid.UUID
	Name         string
	HourPrice    int64
	Currency     string
	Availability schedule.Config
}

type SpaceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SpaceSnapshot, error)
}
