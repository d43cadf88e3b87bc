//go:build unit

package payments_test

import (
	"context"
	"encoding/base64"
	"testing"

	"venuebook/internal/domain/booking"
	"venuebook/internal/domain/payment"
	"venuebook/internal/pkg/clock"
	"venuebook/internal/pkg/config"
	"venuebook/internal/usecase/payments"
	"venuebook/tests/common/builder"
	"venuebook/tests/common/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaymeFixture(t *testing.T) (*fake.UnitOfWork, *payments.PaymeAdapter) {
	t.Helper()
	cfg := config.NewTestConfig().Payme
	uow := fake.NewUnitOfWork()
	clk := clock.NewMockClock(testNow)
	rec := payments.NewReconciler(uow, clk, quietLogger())
	return uow, payments.NewPaymeAdapter(cfg, uow, rec, quietLogger())
}

func paymeCall(method string, params payments.PaymeParams) payments.PaymeRequest {
	return payments.PaymeRequest{ID: 1, Method: method, Params: params}
}

func tiyin(b *booking.Booking) int64 { return b.FinalTotal() * 100 }

func TestPaymeAuth(t *testing.T) {
	_, adapter := newPaymeFixture(t)

	good := "Basic " + base64.StdEncoding.EncodeToString([]byte("Paycom:payme-test-key"))
	assert.True(t, adapter.VerifyAuth(good))

	bad := "Basic " + base64.StdEncoding.EncodeToString([]byte("Paycom:wrong"))
	assert.False(t, adapter.VerifyAuth(bad))
	assert.False(t, adapter.VerifyAuth("Bearer abc"))
	assert.False(t, adapter.VerifyAuth(""))
}

func TestPaymeCheckPerformTransaction(t *testing.T) {
	t.Run("payable booking allows", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		resp := adapter.Handle(context.Background(), paymeCall("CheckPerformTransaction", payments.PaymeParams{
			Amount:  tiyin(b),
			Account: payments.PaymeAccount{BookingID: b.ID().String()},
		}))
		require.Nil(t, resp.Error)
		assert.Equal(t, map[string]any{"allow": true}, resp.Result)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, adapter := newPaymeFixture(t)
		resp := adapter.Handle(context.Background(), paymeCall("CheckPerformTransaction", payments.PaymeParams{
			Amount:  100,
			Account: payments.PaymeAccount{BookingID: "not-a-uuid"},
		}))
		require.NotNil(t, resp.Error)
		assert.Equal(t, -31050, resp.Error.Code)
	})

	t.Run("wrong amount in tiyin", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		resp := adapter.Handle(context.Background(), paymeCall("CheckPerformTransaction", payments.PaymeParams{
			Amount:  b.FinalTotal(), // soums, not tiyin
			Account: payments.PaymeAccount{BookingID: b.ID().String()},
		}))
		require.NotNil(t, resp.Error)
		assert.Equal(t, -31001, resp.Error.Code)
	})

	t.Run("finalized booking cannot accept payment", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().WithStatus(booking.StatusCancelled).Build()
		uow.SeedBooking(b)

		resp := adapter.Handle(context.Background(), paymeCall("CheckPerformTransaction", payments.PaymeParams{
			Amount:  tiyin(b),
			Account: payments.PaymeAccount{BookingID: b.ID().String()},
		}))
		require.NotNil(t, resp.Error)
		assert.Equal(t, -31008, resp.Error.Code)
	})
}

func TestPaymeCreateTransaction(t *testing.T) {
	t.Run("creates pending and replays idempotently", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		params := payments.PaymeParams{
			ID:      "payme-tx-1",
			Amount:  tiyin(b),
			Account: payments.PaymeAccount{BookingID: b.ID().String()},
		}

		first := adapter.Handle(context.Background(), paymeCall("CreateTransaction", params))
		require.Nil(t, first.Error)
		result := first.Result.(map[string]any)
		assert.Equal(t, 1, result["state"])

		second := adapter.Handle(context.Background(), paymeCall("CreateTransaction", params))
		require.Nil(t, second.Error)
		assert.Equal(t, result["transaction"], second.Result.(map[string]any)["transaction"])
	})

	t.Run("a second pending id for the same booking is refused", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		first := adapter.Handle(context.Background(), paymeCall("CreateTransaction", payments.PaymeParams{
			ID: "payme-tx-1", Amount: tiyin(b),
			Account: payments.PaymeAccount{BookingID: b.ID().String()},
		}))
		require.Nil(t, first.Error)

		second := adapter.Handle(context.Background(), paymeCall("CreateTransaction", payments.PaymeParams{
			ID: "payme-tx-2", Amount: tiyin(b),
			Account: payments.PaymeAccount{BookingID: b.ID().String()},
		}))
		require.NotNil(t, second.Error)
		assert.Equal(t, -31099, second.Error.Code)
	})
}

func TestPaymePerformTransaction(t *testing.T) {
	create := func(t *testing.T, uow *fake.UnitOfWork, adapter *payments.PaymeAdapter, b *booking.Booking, id string) {
		t.Helper()
		resp := adapter.Handle(context.Background(), paymeCall("CreateTransaction", payments.PaymeParams{
			ID: id, Amount: tiyin(b),
			Account: payments.PaymeAccount{BookingID: b.ID().String()},
		}))
		require.Nil(t, resp.Error)
	}

	t.Run("perform settles and approves the booking", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().WithStatus(booking.StatusSelected).Build()
		uow.SeedBooking(b)
		create(t, uow, adapter, b, "payme-tx-1")

		resp := adapter.Handle(context.Background(), paymeCall("PerformTransaction", payments.PaymeParams{ID: "payme-tx-1"}))
		require.Nil(t, resp.Error)
		assert.Equal(t, 2, resp.Result.(map[string]any)["state"])
		assert.Equal(t, booking.StatusApproved, b.Status())
	})

	t.Run("duplicate perform is idempotent", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		create(t, uow, adapter, b, "payme-tx-1")

		first := adapter.Handle(context.Background(), paymeCall("PerformTransaction", payments.PaymeParams{ID: "payme-tx-1"}))
		require.Nil(t, first.Error)
		paidAt := *b.PaidAt()

		second := adapter.Handle(context.Background(), paymeCall("PerformTransaction", payments.PaymeParams{ID: "payme-tx-1"}))
		require.Nil(t, second.Error)
		assert.Equal(t, first.Result.(map[string]any)["perform_time"], second.Result.(map[string]any)["perform_time"])
		assert.Equal(t, paidAt, *b.PaidAt())
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, adapter := newPaymeFixture(t)
		resp := adapter.Handle(context.Background(), paymeCall("PerformTransaction", payments.PaymeParams{ID: "nope"}))
		require.NotNil(t, resp.Error)
		assert.Equal(t, -31003, resp.Error.Code)
	})

	t.Run("cancelled transaction cannot perform", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		create(t, uow, adapter, b, "payme-tx-1")

		reason := 3
		cancel := adapter.Handle(context.Background(), paymeCall("CancelTransaction", payments.PaymeParams{ID: "payme-tx-1", Reason: &reason}))
		require.Nil(t, cancel.Error)

		resp := adapter.Handle(context.Background(), paymeCall("PerformTransaction", payments.PaymeParams{ID: "payme-tx-1"}))
		require.NotNil(t, resp.Error)
		assert.Equal(t, -31008, resp.Error.Code)
	})
}

func TestPaymeCancelTransaction(t *testing.T) {
	create := func(t *testing.T, adapter *payments.PaymeAdapter, b *booking.Booking, id string) {
		t.Helper()
		resp := adapter.Handle(context.Background(), paymeCall("CreateTransaction", payments.PaymeParams{
			ID: id, Amount: tiyin(b),
			Account: payments.PaymeAccount{BookingID: b.ID().String()},
		}))
		require.Nil(t, resp.Error)
	}

	t.Run("pending transaction cancels with the reason", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		create(t, adapter, b, "payme-tx-1")

		reason := 3
		resp := adapter.Handle(context.Background(), paymeCall("CancelTransaction", payments.PaymeParams{ID: "payme-tx-1", Reason: &reason}))
		require.Nil(t, resp.Error)
		assert.Equal(t, -1, resp.Result.(map[string]any)["state"])

		tx, err := uow.Repos().Transactions().FindByProviderTxID(context.Background(), payment.ProviderPayme, "payme-tx-1")
		require.NoError(t, err)
		assert.Equal(t, payment.StateFailed, tx.State())
		require.NotNil(t, tx.CancelReason())
		assert.Equal(t, reason, *tx.CancelReason())
	})

	t.Run("paid transaction cannot be cancelled", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		create(t, adapter, b, "payme-tx-1")

		perform := adapter.Handle(context.Background(), paymeCall("PerformTransaction", payments.PaymeParams{ID: "payme-tx-1"}))
		require.Nil(t, perform.Error)

		reason := 5
		resp := adapter.Handle(context.Background(), paymeCall("CancelTransaction", payments.PaymeParams{ID: "payme-tx-1", Reason: &reason}))
		require.NotNil(t, resp.Error)
		assert.Equal(t, -31007, resp.Error.Code)
		assert.Equal(t, booking.StatusApproved, b.Status())
	})
}

func TestPaymeCheckTransactionAndDispatch(t *testing.T) {
	t.Run("check reports the wire state", func(t *testing.T) {
		uow, adapter := newPaymeFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		created := adapter.Handle(context.Background(), paymeCall("CreateTransaction", payments.PaymeParams{
			ID: "payme-tx-1", Amount: tiyin(b),
			Account: payments.PaymeAccount{BookingID: b.ID().String()},
		}))
		require.Nil(t, created.Error)

		resp := adapter.Handle(context.Background(), paymeCall("CheckTransaction", payments.PaymeParams{ID: "payme-tx-1"}))
		require.Nil(t, resp.Error)
		assert.Equal(t, 1, resp.Result.(map[string]any)["state"])
	})

	t.Run("unknown method", func(t *testing.T) {
		_, adapter := newPaymeFixture(t)
		resp := adapter.Handle(context.Background(), paymeCall("GetStatement", payments.PaymeParams{}))
		require.NotNil(t, resp.Error)
		assert.Equal(t, -32601, resp.Error.Code)
	})
}
