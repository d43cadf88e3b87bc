package payments

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"

	"venuebook/internal/domain/booking"
	"venuebook/internal/domain/payment"
	"venuebook/internal/infra"
	"venuebook/internal/pkg/config"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
)

// Payme JSON-RPC error codes.
const (
	paymeErrUnauthorized       = -32504
	paymeErrMethodNotFound     = -32601
	paymeErrParse              = -32700
	paymeErrWrongAmount        = -31001
	paymeErrTxNotFound         = -31003
	paymeErrCannotCancelPaid   = -31007
	paymeErrCannotPerform      = -31008
	paymeErrBookingNotFound    = -31050
	paymeErrDuplicatePending   = -31099
)

// Payme wire transaction states. Distinct from the canonical states: a
// cancellation reported after perform is -2 on the wire.
const (
	paymeStateCreated            = 1
	paymeStatePerformed          = 2
	paymeStateCancelled          = -1
	paymeStateCancelledAfterPerf = -2
)

type PaymeRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params PaymeParams     `json:"params"`
	Raw    json.RawMessage `json:"-"`
}

type PaymeParams struct {
	ID      string       `json:"id"`
	Time    int64        `json:"time"`
	Amount  int64        `json:"amount"`
	Account PaymeAccount `json:"account"`
	Reason  *int         `json:"reason"`
}

type PaymeAccount struct {
	BookingID string `json:"booking_id"`
}

type PaymeError struct {
	Code    int       `json:"code"`
	Message paymeText `json:"message"`
	Data    string    `json:"data,omitempty"`
}

type paymeText struct {
	RU string `json:"ru"`
	UZ string `json:"uz"`
	EN string `json:"en"`
}

type PaymeResponse struct {
	ID     any         `json:"id"`
	Result any         `json:"result,omitempty"`
	Error  *PaymeError `json:"error,omitempty"`
}

// PaymeAdapter implements Payme's Merchant API: a stateful JSON-RPC protocol
// where Payme drives the transaction through create/perform/cancel and may
// replay any call.
type PaymeAdapter struct {
	cfg        config.PaymeConfig
	uow        shared.UnitOfWork
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewPaymeAdapter(cfg config.PaymeConfig, uow shared.UnitOfWork, reconciler *Reconciler, logger *slog.Logger) *PaymeAdapter {
	return &PaymeAdapter{cfg: cfg, uow: uow, reconciler: reconciler, logger: logger}
}

// VerifyAuth checks the Basic credentials Payme sends on every request
// (login is always "Paycom").
func (a *PaymeAdapter) VerifyAuth(header string) bool {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	expected := "Paycom:" + a.cfg.Key
	return subtle.ConstantTimeCompare(decoded, []byte(expected)) == 1
}

// Handle dispatches one JSON-RPC call. Protocol errors come back in the
// response body; the HTTP status is always 200.
func (a *PaymeAdapter) Handle(ctx context.Context, req PaymeRequest) PaymeResponse {
	var result any
	var perr *PaymeError

	switch req.Method {
	case "CheckPerformTransaction":
		result, perr = a.checkPerform(ctx, req.Params)
	case "CreateTransaction":
		result, perr = a.createTransaction(ctx, req)
	case "PerformTransaction":
		result, perr = a.performTransaction(ctx, req)
	case "CancelTransaction":
		result, perr = a.cancelTransaction(ctx, req)
	case "CheckTransaction":
		result, perr = a.checkTransaction(ctx, req.Params)
	default:
		perr = paymeError(paymeErrMethodNotFound, "method not found")
	}

	resp := PaymeResponse{ID: req.ID}
	if perr != nil {
		resp.Error = perr
	} else {
		resp.Result = result
	}
	return resp
}

func (a *PaymeAdapter) checkPerform(ctx context.Context, p PaymeParams) (any, *PaymeError) {
	var perr *PaymeError
	err := a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		_, perr = a.loadPayableBooking(ctx, tx, p)
		return nil
	})
	if err != nil {
		return nil, a.internalError("CheckPerformTransaction", err)
	}
	if perr != nil {
		return nil, perr
	}
	return map[string]any{"allow": true}, nil
}

func (a *PaymeAdapter) createTransaction(ctx context.Context, req PaymeRequest) (any, *PaymeError) {
	p := req.Params
	var result any
	var perr *PaymeError

	err := a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		existing, err := tx.Transactions().FindByProviderTxIDForUpdate(ctx, payment.ProviderPayme, p.ID)
		if err == nil {
			result, perr = a.createResultFor(existing)
			return nil
		}
		if !infra.IsKind(err, infra.KindNotFound) {
			return err
		}

		b, bErr := a.loadPayableBooking(ctx, tx, p)
		if bErr != nil {
			perr = bErr
			return nil
		}

		// One live Payme transaction per booking: a different pending id for
		// the same booking is rejected, not merged.
		prior, err := tx.Transactions().FindByBookingForUpdate(ctx, payment.ProviderPayme, b.ID())
		if err == nil {
			if prior.State() == payment.StatePending && prior.ProviderTxID() != p.ID {
				perr = paymeError(paymeErrDuplicatePending, "another transaction is pending for this booking")
				return nil
			}
			if prior.State().IsTerminal() {
				perr = paymeError(paymeErrCannotPerform, "transaction already finalized for this booking")
				return nil
			}
		} else if !infra.IsKind(err, infra.KindNotFound) {
			return err
		}

		res, err := a.reconciler.ApplyInTx(ctx, tx, Event{
			Provider:     payment.ProviderPayme,
			ProviderTxID: p.ID,
			BookingID:    b.ID(),
			UserID:       b.UserID(),
			Amount:       b.FinalTotal(),
			Currency:     "UZS",
			State:        payment.StatePending,
			Raw:          req.Raw,
		})
		if err != nil {
			if errs.Is(err, errs.ErrDuplicatePending) {
				perr = paymeError(paymeErrDuplicatePending, "another transaction is pending for this booking")
				return nil
			}
			return err
		}
		result, perr = a.createResultFor(res.Transaction)
		return nil
	})
	if err != nil {
		return nil, a.internalError("CreateTransaction", err)
	}
	return result, perr
}

func (a *PaymeAdapter) createResultFor(t *payment.Transaction) (any, *PaymeError) {
	switch t.State() {
	case payment.StatePending:
		return map[string]any{
			"create_time": t.CreatedAt().UnixMilli(),
			"transaction": t.ID().String(),
			"state":       paymeStateCreated,
		}, nil
	default:
		return nil, paymeError(paymeErrCannotPerform, "transaction already finalized")
	}
}

func (a *PaymeAdapter) performTransaction(ctx context.Context, req PaymeRequest) (any, *PaymeError) {
	p := req.Params
	var result any
	var perr *PaymeError

	err := a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		t, err := tx.Transactions().FindByProviderTxIDForUpdate(ctx, payment.ProviderPayme, p.ID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				perr = paymeError(paymeErrTxNotFound, "transaction not found")
				return nil
			}
			return err
		}
		if t.State() == payment.StateFailed {
			perr = paymeError(paymeErrCannotPerform, "transaction is cancelled")
			return nil
		}

		res, err := a.reconciler.ApplyInTx(ctx, tx, Event{
			Provider:     payment.ProviderPayme,
			ProviderTxID: p.ID,
			BookingID:    t.BookingID(),
			UserID:       t.UserID(),
			Amount:       t.Amount(),
			Currency:     t.Currency(),
			State:        payment.StatePaid,
			Raw:          req.Raw,
		})
		if err != nil {
			return err
		}

		performTime := int64(0)
		if res.Transaction.PerformDate() != nil {
			performTime = res.Transaction.PerformDate().UnixMilli()
		}
		result = map[string]any{
			"transaction":  res.Transaction.ID().String(),
			"perform_time": performTime,
			"state":        paymeStatePerformed,
		}
		return nil
	})
	if err != nil {
		return nil, a.internalError("PerformTransaction", err)
	}
	return result, perr
}

func (a *PaymeAdapter) cancelTransaction(ctx context.Context, req PaymeRequest) (any, *PaymeError) {
	p := req.Params
	var result any
	var perr *PaymeError

	err := a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		t, err := tx.Transactions().FindByProviderTxIDForUpdate(ctx, payment.ProviderPayme, p.ID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				perr = paymeError(paymeErrTxNotFound, "transaction not found")
				return nil
			}
			return err
		}
		// A settled payment stays settled; refunds are a manual, out-of-band
		// operation.
		if t.State() == payment.StatePaid {
			perr = paymeError(paymeErrCannotCancelPaid, "paid transaction cannot be cancelled")
			return nil
		}

		res, err := a.reconciler.ApplyInTx(ctx, tx, Event{
			Provider:     payment.ProviderPayme,
			ProviderTxID: p.ID,
			BookingID:    t.BookingID(),
			UserID:       t.UserID(),
			Amount:       t.Amount(),
			Currency:     t.Currency(),
			State:        payment.StateFailed,
			CancelCode:   p.Reason,
			Raw:          req.Raw,
		})
		if err != nil {
			return err
		}

		result = map[string]any{
			"transaction": res.Transaction.ID().String(),
			"cancel_time": res.Transaction.UpdatedAt().UnixMilli(),
			"state":       paymeStateCancelled,
		}
		return nil
	})
	if err != nil {
		return nil, a.internalError("CancelTransaction", err)
	}
	return result, perr
}

func (a *PaymeAdapter) checkTransaction(ctx context.Context, p PaymeParams) (any, *PaymeError) {
	var result any
	var perr *PaymeError

	err := a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		t, err := tx.Transactions().FindByProviderTxID(ctx, payment.ProviderPayme, p.ID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				perr = paymeError(paymeErrTxNotFound, "transaction not found")
				return nil
			}
			return err
		}

		performTime := int64(0)
		cancelTime := int64(0)
		state := paymeStateCreated
		switch t.State() {
		case payment.StatePaid:
			state = paymeStatePerformed
		case payment.StateFailed:
			state = paymeStateCancelled
			if t.PerformDate() != nil {
				state = paymeStateCancelledAfterPerf
			}
			cancelTime = t.UpdatedAt().UnixMilli()
		}
		if t.PerformDate() != nil {
			performTime = t.PerformDate().UnixMilli()
		}

		result = map[string]any{
			"create_time":  t.CreatedAt().UnixMilli(),
			"perform_time": performTime,
			"cancel_time":  cancelTime,
			"transaction":  t.ID().String(),
			"state":        state,
			"reason":       t.CancelReason(),
		}
		return nil
	})
	if err != nil {
		return nil, a.internalError("CheckTransaction", err)
	}
	return result, perr
}

// loadPayableBooking resolves the account's booking and verifies it can still
// accept a payment at the offered amount. Payme amounts are in tiyin.
func (a *PaymeAdapter) loadPayableBooking(ctx context.Context, tx shared.Tx, p PaymeParams) (*booking.Booking, *PaymeError) {
	bookingID, err := uuid.Parse(p.Account.BookingID)
	if err != nil {
		return nil, paymeErrorData(paymeErrBookingNotFound, "booking not found", "booking_id")
	}
	b, err := tx.Bookings().FindByIDForUpdate(ctx, bookingID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, paymeErrorData(paymeErrBookingNotFound, "booking not found", "booking_id")
		}
		a.logger.Error("payme booking lookup failed", "error", err.Error(), "booking_id", p.Account.BookingID)
		return nil, paymeErrorData(paymeErrBookingNotFound, "booking not found", "booking_id")
	}
	if b.Status().IsTerminal() {
		return nil, paymeErrorData(paymeErrCannotPerform, "booking is finalized", "booking_id")
	}
	if p.Amount != b.FinalTotal()*100 {
		return nil, paymeError(paymeErrWrongAmount, "incorrect amount")
	}
	return b, nil
}

func (a *PaymeAdapter) internalError(method string, err error) *PaymeError {
	a.logger.Error("payme method failed", "method", method, "error", err.Error())
	return paymeError(paymeErrCannotPerform, "internal error")
}

// PaymeParseError is the malformed-body response, sent before dispatch.
func PaymeParseError() *PaymeError {
	return paymeError(paymeErrParse, "could not parse request")
}

// PaymeAuthError is the failed Basic-auth response.
func PaymeAuthError() *PaymeError {
	return paymeError(paymeErrUnauthorized, "insufficient privileges")
}

func paymeError(code int, en string) *PaymeError {
	return &PaymeError{Code: code, Message: paymeText{RU: en, UZ: en, EN: en}}
}

func paymeErrorData(code int, en, field string) *PaymeError {
	e := paymeError(code, en)
	e.Data = field
	return e
}
