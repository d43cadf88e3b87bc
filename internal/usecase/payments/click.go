package payments

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"venuebook/internal/domain/payment"
	"venuebook/internal/infra"
	"venuebook/internal/pkg/config"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
)

// Click error vocabulary. Returned to Click verbatim so its retry/cancel
// logic behaves correctly.
const (
	clickOK               = 0
	clickErrSignCheck     = -1
	clickErrWrongAmount   = -2
	clickErrActionNotSet  = -3
	clickErrAlreadyPaid   = -4
	clickErrUserNotFound  = -5
	clickErrTxNotFound    = -6
	clickErrBadRequest    = -8
	clickErrTxCancelled   = -9
)

const (
	clickActionPrepare  = 0
	clickActionComplete = 1
)

// ClickRequest is the form payload Click posts on both phases.
type ClickRequest struct {
	ClickTransID      int64   `form:"click_trans_id"`
	ServiceID         string  `form:"service_id"`
	ClickPaydocID     string  `form:"click_paydoc_id"`
	MerchantTransID   string  `form:"merchant_trans_id"`
	MerchantPrepareID string  `form:"merchant_prepare_id"`
	Amount            float64 `form:"amount"`
	Action            int     `form:"action"`
	Error             int     `form:"error"`
	ErrorNote         string  `form:"error_note"`
	SignTime          string  `form:"sign_time"`
	SignString        string  `form:"sign_string"`
}

type ClickResponse struct {
	ClickTransID      int64  `json:"click_trans_id"`
	MerchantTransID   string `json:"merchant_trans_id"`
	MerchantPrepareID string `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID string `json:"merchant_confirm_id,omitempty"`
	Error             int    `json:"error"`
	ErrorNote         string `json:"error_note"`
}

// ClickAdapter handles Click's synchronous two-phase flow: a signed prepare
// (action=0) creating the pending transaction, then a signed complete
// (action=1) settling or cancelling it.
type ClickAdapter struct {
	cfg        config.ClickConfig
	uow        shared.UnitOfWork
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewClickAdapter(cfg config.ClickConfig, uow shared.UnitOfWork, reconciler *Reconciler, logger *slog.Logger) *ClickAdapter {
	return &ClickAdapter{cfg: cfg, uow: uow, reconciler: reconciler, logger: logger}
}

// Handle processes either phase and always returns a wire-level response;
// internal failures surface only through Click's own error codes.
func (a *ClickAdapter) Handle(ctx context.Context, req ClickRequest) ClickResponse {
	switch req.Action {
	case clickActionPrepare:
		return a.prepare(ctx, req)
	case clickActionComplete:
		return a.complete(ctx, req)
	default:
		return a.respond(req, clickErrActionNotSet, "action not found")
	}
}

func (a *ClickAdapter) prepare(ctx context.Context, req ClickRequest) ClickResponse {
	if !a.verifySignature(req, false) {
		return a.respond(req, clickErrSignCheck, "sign check failed")
	}

	bookingID, err := uuid.Parse(req.MerchantTransID)
	if err != nil {
		return a.respond(req, clickErrUserNotFound, "booking not found")
	}

	var prepareID string
	code := clickOK
	note := "success"

	err = a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		b, err := tx.Bookings().FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				code, note = clickErrUserNotFound, "booking not found"
				return nil
			}
			return err
		}
		if int64(math.Round(req.Amount)) != b.FinalTotal() {
			code, note = clickErrWrongAmount, "incorrect amount"
			return nil
		}

		raw, _ := json.Marshal(req)
		res, err := a.reconciler.ApplyInTx(ctx, tx, Event{
			Provider:     payment.ProviderClick,
			ProviderTxID: strconv.FormatInt(req.ClickTransID, 10),
			BookingID:    b.ID(),
			UserID:       b.UserID(),
			Amount:       b.FinalTotal(),
			Currency:     "UZS",
			State:        payment.StatePending,
			Raw:          raw,
		})
		if err != nil {
			return err
		}

		switch res.Transaction.State() {
		case payment.StatePaid:
			code, note = clickErrAlreadyPaid, "already paid"
		case payment.StateFailed:
			code, note = clickErrTxCancelled, "transaction cancelled"
		default:
			prepareID = res.Transaction.ID().String()
		}
		return nil
	})
	if err != nil {
		a.logger.Error("click prepare failed", "error", err.Error(), "booking_id", req.MerchantTransID)
		return a.respond(req, clickErrBadRequest, "internal error")
	}

	resp := a.respond(req, code, note)
	resp.MerchantPrepareID = prepareID
	return resp
}

func (a *ClickAdapter) complete(ctx context.Context, req ClickRequest) ClickResponse {
	if !a.verifySignature(req, true) {
		return a.respond(req, clickErrSignCheck, "sign check failed")
	}

	code := clickOK
	note := "success"
	var confirmID string

	err := a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		t, err := tx.Transactions().FindByProviderTxIDForUpdate(ctx, payment.ProviderClick, strconv.FormatInt(req.ClickTransID, 10))
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				code, note = clickErrTxNotFound, "transaction not found"
				return nil
			}
			return err
		}
		if req.MerchantPrepareID != "" && req.MerchantPrepareID != t.ID().String() {
			code, note = clickErrTxNotFound, "prepare id mismatch"
			return nil
		}
		if int64(math.Round(req.Amount)) != t.Amount() {
			code, note = clickErrWrongAmount, "incorrect amount"
			return nil
		}

		state := payment.StatePaid
		var cancelCode *int
		// A negative error on complete is Click telling us the payment was
		// cancelled on its side.
		if req.Error < 0 {
			state = payment.StateFailed
			e := req.Error
			cancelCode = &e
		}

		wasPaid := t.State() == payment.StatePaid
		raw, _ := json.Marshal(req)
		res, err := a.reconciler.ApplyInTx(ctx, tx, Event{
			Provider:     payment.ProviderClick,
			ProviderTxID: t.ProviderTxID(),
			BookingID:    t.BookingID(),
			UserID:       t.UserID(),
			Amount:       t.Amount(),
			Currency:     t.Currency(),
			State:        state,
			CancelCode:   cancelCode,
			Raw:          raw,
		})
		if err != nil {
			return err
		}

		switch {
		case res.Transaction.State() == payment.StateFailed:
			code, note = clickErrTxCancelled, "transaction cancelled"
		case wasPaid && !res.StateChanged:
			// Duplicate complete: Click's own "already paid" ack.
			code, note = clickErrAlreadyPaid, "already paid"
			confirmID = res.Transaction.ID().String()
		default:
			confirmID = res.Transaction.ID().String()
		}
		return nil
	})
	if err != nil {
		a.logger.Error("click complete failed", "error", err.Error(), "click_trans_id", req.ClickTransID)
		return a.respond(req, clickErrBadRequest, "internal error")
	}

	resp := a.respond(req, code, note)
	resp.MerchantConfirmID = confirmID
	return resp
}

// verifySignature recomputes Click's md5 over the fixed field order:
// click_trans_id + service_id + secret_key + merchant_trans_id +
// [merchant_prepare_id on complete] + amount + action + sign_time.
func (a *ClickAdapter) verifySignature(req ClickRequest, withPrepareID bool) bool {
	prepare := ""
	if withPrepareID {
		prepare = req.MerchantPrepareID
	}
	payload := fmt.Sprintf("%d%s%s%s%s%s%d%s",
		req.ClickTransID,
		req.ServiceID,
		a.cfg.SecretKey,
		req.MerchantTransID,
		prepare,
		formatClickAmount(req.Amount),
		req.Action,
		req.SignTime,
	)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:]) == req.SignString
}

// Click signs the amount exactly as sent: integral values without a decimal
// part, fractional ones with two digits.
func formatClickAmount(amount float64) string {
	if amount == math.Trunc(amount) {
		return strconv.FormatInt(int64(amount), 10)
	}
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func (a *ClickAdapter) respond(req ClickRequest, code int, note string) ClickResponse {
	return ClickResponse{
		ClickTransID:    req.ClickTransID,
		MerchantTransID: req.MerchantTransID,
		Error:           code,
		ErrorNote:       note,
	}
}
