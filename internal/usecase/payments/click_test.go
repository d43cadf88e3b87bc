//go:build unit

package payments_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
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

const clickSignTime = "2026-09-14 12:00:00"

func newClickFixture(t *testing.T) (*fake.UnitOfWork, *payments.ClickAdapter, config.ClickConfig) {
	t.Helper()
	cfg := config.NewTestConfig().Click
	uow := fake.NewUnitOfWork()
	clk := clock.NewMockClock(testNow)
	rec := payments.NewReconciler(uow, clk, quietLogger())
	return uow, payments.NewClickAdapter(cfg, uow, rec, quietLogger()), cfg
}

func signClick(cfg config.ClickConfig, req payments.ClickRequest, withPrepareID bool) string {
	prepare := ""
	if withPrepareID {
		prepare = req.MerchantPrepareID
	}
	payload := fmt.Sprintf("%d%s%s%s%s%d%d%s",
		req.ClickTransID, req.ServiceID, cfg.SecretKey, req.MerchantTransID,
		prepare, int64(req.Amount), req.Action, req.SignTime,
	)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func clickPrepareRequest(cfg config.ClickConfig, b *booking.Booking) payments.ClickRequest {
	req := payments.ClickRequest{
		ClickTransID:    555001,
		ServiceID:       cfg.ServiceID,
		MerchantTransID: b.ID().String(),
		Amount:          float64(b.FinalTotal()),
		Action:          0,
		SignTime:        clickSignTime,
	}
	req.SignString = signClick(cfg, req, false)
	return req
}

func TestClickPrepare(t *testing.T) {
	t.Run("valid prepare creates the pending transaction", func(t *testing.T) {
		uow, adapter, cfg := newClickFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		resp := adapter.Handle(context.Background(), clickPrepareRequest(cfg, b))

		assert.Equal(t, 0, resp.Error)
		assert.NotEmpty(t, resp.MerchantPrepareID)

		tx, err := uow.Repos().Transactions().FindByBooking(context.Background(), payment.ProviderClick, b.ID())
		require.NoError(t, err)
		assert.Equal(t, payment.StatePending, tx.State())
		assert.Equal(t, tx.ID().String(), resp.MerchantPrepareID)
	})

	t.Run("bad signature", func(t *testing.T) {
		uow, adapter, cfg := newClickFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		req := clickPrepareRequest(cfg, b)
		req.SignString = "deadbeef"
		resp := adapter.Handle(context.Background(), req)
		assert.Equal(t, -1, resp.Error)
	})

	t.Run("wrong amount", func(t *testing.T) {
		uow, adapter, cfg := newClickFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		req := clickPrepareRequest(cfg, b)
		req.Amount = float64(b.FinalTotal() + 1)
		req.SignString = signClick(cfg, req, false)
		resp := adapter.Handle(context.Background(), req)
		assert.Equal(t, -2, resp.Error)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, adapter, cfg := newClickFixture(t)
		ghost := builder.NewBookingBuilder().Build()

		resp := adapter.Handle(context.Background(), clickPrepareRequest(cfg, ghost))
		assert.Equal(t, -5, resp.Error)
	})

	t.Run("unknown action", func(t *testing.T) {
		uow, adapter, cfg := newClickFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		req := clickPrepareRequest(cfg, b)
		req.Action = 2
		resp := adapter.Handle(context.Background(), req)
		assert.Equal(t, -3, resp.Error)
	})
}

func TestClickComplete(t *testing.T) {
	prepare := func(t *testing.T, uow *fake.UnitOfWork, adapter *payments.ClickAdapter, cfg config.ClickConfig, b *booking.Booking) string {
		t.Helper()
		resp := adapter.Handle(context.Background(), clickPrepareRequest(cfg, b))
		require.Equal(t, 0, resp.Error)
		return resp.MerchantPrepareID
	}

	completeRequest := func(cfg config.ClickConfig, b *booking.Booking, prepareID string, clickErr int) payments.ClickRequest {
		req := payments.ClickRequest{
			ClickTransID:      555001,
			ServiceID:         cfg.ServiceID,
			MerchantTransID:   b.ID().String(),
			MerchantPrepareID: prepareID,
			Amount:            float64(b.FinalTotal()),
			Action:            1,
			Error:             clickErr,
			SignTime:          clickSignTime,
		}
		req.SignString = signClick(cfg, req, true)
		return req
	}

	t.Run("complete settles the payment and approves the booking", func(t *testing.T) {
		uow, adapter, cfg := newClickFixture(t)
		b := builder.NewBookingBuilder().WithStatus(booking.StatusSelected).Build()
		uow.SeedBooking(b)
		prepareID := prepare(t, uow, adapter, cfg, b)

		resp := adapter.Handle(context.Background(), completeRequest(cfg, b, prepareID, 0))

		assert.Equal(t, 0, resp.Error)
		assert.NotEmpty(t, resp.MerchantConfirmID)
		assert.Equal(t, booking.StatusApproved, b.Status())
	})

	t.Run("duplicate complete acks as already paid", func(t *testing.T) {
		uow, adapter, cfg := newClickFixture(t)
		b := builder.NewBookingBuilder().WithStatus(booking.StatusSelected).Build()
		uow.SeedBooking(b)
		prepareID := prepare(t, uow, adapter, cfg, b)

		first := adapter.Handle(context.Background(), completeRequest(cfg, b, prepareID, 0))
		require.Equal(t, 0, first.Error)
		paidAt := *b.PaidAt()

		second := adapter.Handle(context.Background(), completeRequest(cfg, b, prepareID, 0))
		assert.Equal(t, -4, second.Error)
		assert.Equal(t, paidAt, *b.PaidAt())
	})

	t.Run("provider-side cancellation fails the transaction", func(t *testing.T) {
		uow, adapter, cfg := newClickFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)
		prepareID := prepare(t, uow, adapter, cfg, b)

		resp := adapter.Handle(context.Background(), completeRequest(cfg, b, prepareID, -5017))

		assert.Equal(t, -9, resp.Error)
		tx, err := uow.Repos().Transactions().FindByBooking(context.Background(), payment.ProviderClick, b.ID())
		require.NoError(t, err)
		assert.Equal(t, payment.StateFailed, tx.State())
		assert.Equal(t, booking.StatusPending, b.Status())
	})

	t.Run("complete without a prepare", func(t *testing.T) {
		uow, adapter, cfg := newClickFixture(t)
		b := builder.NewBookingBuilder().Build()
		uow.SeedBooking(b)

		resp := adapter.Handle(context.Background(), completeRequest(cfg, b, "", 0))
		assert.Equal(t, -6, resp.Error)
	})
}
