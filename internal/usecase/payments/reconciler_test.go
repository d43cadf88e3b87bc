//go:build unit

package payments_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"venuebook/internal/domain/booking"
	"venuebook/internal/domain/payment"
	"venuebook/internal/pkg/clock"
	"venuebook/internal/usecase/payments"
	"venuebook/tests/common/builder"
	"venuebook/tests/common/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newReconciler(t *testing.T) (*fake.UnitOfWork, *payments.Reconciler, *clock.MockClock) {
	t.Helper()
	uow := fake.NewUnitOfWork()
	clk := clock.NewMockClock(testNow)
	return uow, payments.NewReconciler(uow, clk, quietLogger()), clk
}

func paidEvent(b *booking.Booking, providerTxID string) payments.Event {
	return payments.Event{
		Provider:     payment.ProviderClick,
		ProviderTxID: providerTxID,
		BookingID:    b.ID(),
		UserID:       b.UserID(),
		Amount:       b.FinalTotal(),
		Currency:     "UZS",
		State:        payment.StatePaid,
	}
}

func TestReconcilerApply(t *testing.T) {
	t.Run("first paid event creates the transaction and approves the booking", func(t *testing.T) {
		uow, rec, _ := newReconciler(t)
		b := builder.NewBookingBuilder().WithStatus(booking.StatusSelected).Build()
		uow.SeedBooking(b)

		res, err := rec.Apply(context.Background(), paidEvent(b, "click-1"))
		require.NoError(t, err)

		assert.True(t, res.StateChanged)
		assert.True(t, res.BookingApproved)
		assert.Equal(t, payment.StatePaid, res.Transaction.State())
		assert.Equal(t, booking.StatusApproved, b.Status())
		require.NotNil(t, b.PaidAt())
	})

	t.Run("duplicate paid event is a no-op and approves nothing twice", func(t *testing.T) {
		uow, rec, _ := newReconciler(t)
		b := builder.NewBookingBuilder().WithStatus(booking.StatusSelected).Build()
		uow.SeedBooking(b)

		first, err := rec.Apply(context.Background(), paidEvent(b, "click-1"))
		require.NoError(t, err)
		require.True(t, first.BookingApproved)
		firstPaidAt := *b.PaidAt()

		second, err := rec.Apply(context.Background(), paidEvent(b, "click-1"))
		require.NoError(t, err)

		assert.False(t, second.StateChanged)
		assert.False(t, second.BookingApproved)
		assert.Equal(t, firstPaidAt, *b.PaidAt())
	})

	t.Run("paid for an already approved booking only stamps paidAt", func(t *testing.T) {
		uow, rec, _ := newReconciler(t)
		b := builder.NewBookingBuilder().WithStatus(booking.StatusApproved).Build()
		uow.SeedBooking(b)

		res, err := rec.Apply(context.Background(), paidEvent(b, "click-1"))
		require.NoError(t, err)

		assert.False(t, res.BookingApproved)
		assert.Equal(t, booking.StatusApproved, b.Status())
		assert.NotNil(t, b.PaidAt())
	})

	t.Run("paid for a cancelled booking is flagged, not resurrected", func(t *testing.T) {
		uow, rec, _ := newReconciler(t)
		b := builder.NewBookingBuilder().WithStatus(booking.StatusCancelled).Build()
		uow.SeedBooking(b)

		res, err := rec.Apply(context.Background(), paidEvent(b, "click-1"))
		require.NoError(t, err)

		assert.False(t, res.BookingApproved)
		assert.Equal(t, booking.StatusCancelled, b.Status())
		// The money is still on record.
		assert.Equal(t, payment.StatePaid, res.Transaction.State())
	})

	t.Run("failed event records the reason and leaves the booking alone", func(t *testing.T) {
		uow, rec, _ := newReconciler(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		reason := -9
		ev := paidEvent(b, "click-1")
		ev.State = payment.StateFailed
		ev.CancelCode = &reason

		res, err := rec.Apply(context.Background(), ev)
		require.NoError(t, err)

		assert.Equal(t, payment.StateFailed, res.Transaction.State())
		require.NotNil(t, res.Transaction.CancelReason())
		assert.Equal(t, reason, *res.Transaction.CancelReason())
		assert.Equal(t, booking.StatusPending, b.Status())
	})

	t.Run("failed after paid does not unsettle", func(t *testing.T) {
		uow, rec, _ := newReconciler(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		_, err := rec.Apply(context.Background(), paidEvent(b, "click-1"))
		require.NoError(t, err)

		reason := -9
		ev := paidEvent(b, "click-1")
		ev.State = payment.StateFailed
		ev.CancelCode = &reason

		res, err := rec.Apply(context.Background(), ev)
		require.NoError(t, err)
		assert.False(t, res.StateChanged)
		assert.Equal(t, payment.StatePaid, res.Transaction.State())
		assert.Equal(t, booking.StatusApproved, b.Status())
	})

	t.Run("pending event without provider id matches by booking later", func(t *testing.T) {
		uow, rec, _ := newReconciler(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		ev := paidEvent(b, "")
		ev.State = payment.StatePending
		created, err := rec.Apply(context.Background(), ev)
		require.NoError(t, err)
		require.Equal(t, payment.StatePending, created.Transaction.State())

		// Provider follows up with its own id.
		settled, err := rec.Apply(context.Background(), paidEvent(b, "click-9"))
		require.NoError(t, err)
		assert.Equal(t, created.Transaction.ID(), settled.Transaction.ID())
		assert.Equal(t, "click-9", settled.Transaction.ProviderTxID())
		assert.True(t, settled.BookingApproved)
	})

	t.Run("provider-reported settlement time wins the paid stamp", func(t *testing.T) {
		uow, rec, _ := newReconciler(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		performedAt := testNow.Add(-45 * time.Minute)
		ev := paidEvent(b, "click-1")
		ev.PerformedAt = &performedAt

		_, err := rec.Apply(context.Background(), ev)
		require.NoError(t, err)
		require.NotNil(t, b.PaidAt())
		assert.Equal(t, performedAt, *b.PaidAt())
	})
}
