//go:build unit

package payments_test

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"venuebook/internal/domain/booking"
	"venuebook/internal/domain/payment"
	"venuebook/internal/pkg/clock"
	"venuebook/internal/pkg/config"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/payments"
	"venuebook/tests/common/builder"
	"venuebook/tests/common/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOctoFixture(t *testing.T, prepareURL string) (*fake.UnitOfWork, *payments.OctoAdapter, config.OctoConfig) {
	t.Helper()
	cfg := config.NewTestConfig().Octo
	if prepareURL != "" {
		cfg.PrepareURL = prepareURL
	}
	uow := fake.NewUnitOfWork()
	clk := clock.NewMockClock(testNow)
	rec := payments.NewReconciler(uow, clk, quietLogger())
	return uow, payments.NewOctoAdapter(cfg, uow, rec, clk, quietLogger()), cfg
}

func octoSign(cfg config.OctoConfig, paymentUUID, status string) string {
	sum := sha1.Sum([]byte(cfg.Secret + paymentUUID + status))
	return hex.EncodeToString(sum[:])
}

func TestOctoPrepare(t *testing.T) {
	t.Run("registers the payment and binds the provider id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.EqualValues(t, 111, body["octo_shop_id"])
			assert.Equal(t, "octo-test-secret", body["octo_secret"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":             0,
				"octo_payment_UUID": "octo-uuid-1",
				"octo_pay_url":      "https://pay.octo.uz/pay/octo-uuid-1",
			})
		}))
		defer srv.Close()

		uow, adapter, _ := newOctoFixture(t, srv.URL)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		result, err := adapter.Prepare(context.Background(), b.ID(), b.UserID())
		require.NoError(t, err)
		assert.Equal(t, "octo-uuid-1", result.OctoPaymentID)
		assert.Equal(t, "https://pay.octo.uz/pay/octo-uuid-1", result.PayURL)

		tx, err := uow.Repos().Transactions().FindByProviderTxID(context.Background(), payment.ProviderOcto, "octo-uuid-1")
		require.NoError(t, err)
		assert.Equal(t, payment.StatePending, tx.State())
		assert.Equal(t, result.TransactionID, tx.ID())
	})

	t.Run("provider error surfaces without a dangling provider id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"error": 436, "errMessage": "shop not found"})
		}))
		defer srv.Close()

		uow, adapter, _ := newOctoFixture(t, srv.URL)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		_, err := adapter.Prepare(context.Background(), b.ID(), b.UserID())
		require.ErrorIs(t, err, errs.ErrPaymentConfirmation)

		// The pending row survives for the retry path.
		tx, err := uow.Repos().Transactions().FindByBooking(context.Background(), payment.ProviderOcto, b.ID())
		require.NoError(t, err)
		assert.Equal(t, payment.StatePending, tx.State())
		assert.Empty(t, tx.ProviderTxID())
	})

	t.Run("only the owner can start a payment", func(t *testing.T) {
		uow, adapter, _ := newOctoFixture(t, "")
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		_, err := adapter.Prepare(context.Background(), b.ID(), builder.NewBookingBuilder().Build().UserID())
		assert.ErrorIs(t, err, errs.ErrNotBookingOwner)
	})

	t.Run("finalized booking is refused", func(t *testing.T) {
		uow, adapter, _ := newOctoFixture(t, "")
		b := builder.NewBookingBuilder().WithStatus(booking.StatusRejected).Build()
		uow.SeedBooking(b)

		_, err := adapter.Prepare(context.Background(), b.ID(), b.UserID())
		assert.ErrorIs(t, err, errs.ErrAlreadyFinalized)
	})
}

func TestOctoHandleCallback(t *testing.T) {
	seedPending := func(t *testing.T, uow *fake.UnitOfWork, b *booking.Booking, providerTxID string) *payment.Transaction {
		t.Helper()
		tx, err := payment.NewTransaction(payment.ProviderOcto, providerTxID, b.ID(), b.UserID(), b.FinalTotal(), "UZS", payment.StatePending, testNow)
		require.NoError(t, err)
		uow.SeedTransaction(tx)
		return tx
	}

	t.Run("succeeded callback settles and approves", func(t *testing.T) {
		uow, adapter, cfg := newOctoFixture(t, "")
		b := builder.NewBookingBuilder().WithStatus(booking.StatusSelected).Build()
		uow.SeedBooking(b)
		seedPending(t, uow, b, "octo-uuid-1")

		ack := adapter.HandleCallback(context.Background(), payments.OctoCallback{
			OctoPaymentUUID: "octo-uuid-1",
			Status:          "succeeded",
			Signature:       octoSign(cfg, "octo-uuid-1", "succeeded"),
		}, nil)

		assert.True(t, ack.Accept)
		assert.Equal(t, booking.StatusApproved, b.Status())
	})

	t.Run("duplicate callback is acked without effect", func(t *testing.T) {
		uow, adapter, cfg := newOctoFixture(t, "")
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		seedPending(t, uow, b, "octo-uuid-1")

		cb := payments.OctoCallback{
			OctoPaymentUUID: "octo-uuid-1",
			Status:          "succeeded",
			Signature:       octoSign(cfg, "octo-uuid-1", "succeeded"),
		}
		first := adapter.HandleCallback(context.Background(), cb, nil)
		require.True(t, first.Accept)
		paidAt := *b.PaidAt()

		second := adapter.HandleCallback(context.Background(), cb, nil)
		assert.True(t, second.Accept)
		assert.Equal(t, paidAt, *b.PaidAt())
	})

	t.Run("bad signature is flagged but still processed", func(t *testing.T) {
		uow, adapter, _ := newOctoFixture(t, "")
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		seedPending(t, uow, b, "octo-uuid-1")

		ack := adapter.HandleCallback(context.Background(), payments.OctoCallback{
			OctoPaymentUUID: "octo-uuid-1",
			Status:          "succeeded",
			Signature:       "bogus",
		}, nil)

		assert.True(t, ack.Accept)
		assert.Equal(t, booking.StatusApproved, b.Status())
	})

	t.Run("cancelled callback fails the transaction", func(t *testing.T) {
		uow, adapter, cfg := newOctoFixture(t, "")
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		seedPending(t, uow, b, "octo-uuid-1")

		ack := adapter.HandleCallback(context.Background(), payments.OctoCallback{
			OctoPaymentUUID: "octo-uuid-1",
			Status:          "cancelled",
			Signature:       octoSign(cfg, "octo-uuid-1", "cancelled"),
		}, nil)

		assert.True(t, ack.Accept)
		tx, err := uow.Repos().Transactions().FindByProviderTxID(context.Background(), payment.ProviderOcto, "octo-uuid-1")
		require.NoError(t, err)
		assert.Equal(t, payment.StateFailed, tx.State())
		assert.Equal(t, booking.StatusPending, b.Status())
	})

	t.Run("callback matched by our transaction id when octo id is unknown", func(t *testing.T) {
		uow, adapter, cfg := newOctoFixture(t, "")
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		tx := seedPending(t, uow, b, "")

		ack := adapter.HandleCallback(context.Background(), payments.OctoCallback{
			OctoPaymentUUID:   "octo-uuid-9",
			ShopTransactionID: tx.ID().String(),
			Status:            "succeeded",
			Signature:         octoSign(cfg, "octo-uuid-9", "succeeded"),
		}, nil)

		assert.True(t, ack.Accept)
		assert.Equal(t, payment.StatePaid, tx.State())
		assert.Equal(t, "octo-uuid-9", tx.ProviderTxID())
	})

	t.Run("unknown transaction is acked with a note", func(t *testing.T) {
		_, adapter, cfg := newOctoFixture(t, "")

		ack := adapter.HandleCallback(context.Background(), payments.OctoCallback{
			OctoPaymentUUID: "octo-uuid-404",
			Status:          "succeeded",
			Signature:       octoSign(cfg, "octo-uuid-404", "succeeded"),
		}, nil)

		assert.True(t, ack.Accept)
		assert.NotEmpty(t, ack.Note)
	})

	t.Run("unmapped status is acked and ignored", func(t *testing.T) {
		uow, adapter, cfg := newOctoFixture(t, "")
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		seedPending(t, uow, b, "octo-uuid-1")

		ack := adapter.HandleCallback(context.Background(), payments.OctoCallback{
			OctoPaymentUUID: "octo-uuid-1",
			Status:          "chargeback_review",
			Signature:       octoSign(cfg, "octo-uuid-1", "chargeback_review"),
		}, nil)

		assert.True(t, ack.Accept)
		assert.Equal(t, booking.StatusPending, b.Status())
	})
}
