package payments

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"venuebook/internal/domain/payment"
	"venuebook/internal/infra"
	"venuebook/internal/pkg/clock"
	"venuebook/internal/pkg/config"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
)

type OctoPrepareResult struct {
	TransactionID uuid.UUID `json:"transactionId"`
	OctoPaymentID string    `json:"octoPaymentId"`
	PayURL        string    `json:"payUrl"`
}

// OctoCallback is the async webhook Octo posts once the payment settles on
// its side.
type OctoCallback struct {
	OctoPaymentUUID   string  `json:"octo_payment_UUID"`
	ShopTransactionID string  `json:"shop_transaction_id"`
	Status            string  `json:"status"`
	Signature         string  `json:"signature"`
	TotalSum          float64 `json:"total_sum"`
	TransferSum       float64 `json:"transfer_sum"`
	RefundedSum       float64 `json:"refunded_sum"`
	PayedTime         string  `json:"payed_time"`
}

type OctoAck struct {
	Accept bool   `json:"accept"`
	Note   string `json:"note,omitempty"`
}

type octoPrepareRequest struct {
	OctoShopID      int     `json:"octo_shop_id"`
	OctoSecret      string  `json:"octo_secret"`
	ShopTransaction string  `json:"shop_transaction_id"`
	AutoCapture     bool    `json:"auto_capture"`
	Test            bool    `json:"test"`
	InitTime        string  `json:"init_time"`
	TotalSum        float64 `json:"total_sum"`
	Currency        string  `json:"currency"`
	Description     string  `json:"description"`
	ReturnURL       string  `json:"return_url"`
	NotifyURL       string  `json:"notify_url"`
}

type octoPrepareResponse struct {
	Error             int    `json:"error"`
	ErrMessage        string `json:"errMessage"`
	OctoPayURL        string `json:"octo_pay_url"`
	OctoUUID          string `json:"octo_payment_UUID"`
	ShopTransactionID string `json:"shop_transaction_id"`
}

// OctoAdapter drives Octo's redirect flow: Prepare registers the payment with
// Octo and hands the client a pay URL; HandleCallback folds the async result
// in. The outbound HTTP call runs between two short transactions so no
// network wait ever holds row locks.
type OctoAdapter struct {
	cfg        config.OctoConfig
	uow        shared.UnitOfWork
	reconciler *Reconciler
	clock      clock.Clock
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOctoAdapter(cfg config.OctoConfig, uow shared.UnitOfWork, reconciler *Reconciler, clk clock.Clock, logger *slog.Logger) *OctoAdapter {
	return &OctoAdapter{
		cfg:        cfg,
		uow:        uow,
		reconciler: reconciler,
		clock:      clk,
		httpClient: &http.Client{Timeout: cfg.ClientTimeout},
		logger:     logger,
	}
}

// Prepare creates the pending transaction, registers the payment with Octo,
// then binds Octo's payment id to the transaction.
func (a *OctoAdapter) Prepare(ctx context.Context, bookingID, userID uuid.UUID) (*OctoPrepareResult, error) {
	var t *payment.Transaction
	err := a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		b, err := tx.Bookings().FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return errs.ErrBookingNotFound
			}
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		if b.UserID() != userID {
			return errs.ErrNotBookingOwner
		}
		if b.Status().IsTerminal() {
			return errs.ErrAlreadyFinalized
		}

		existing, err := tx.Transactions().FindByBookingForUpdate(ctx, payment.ProviderOcto, b.ID())
		if err == nil {
			switch existing.State() {
			case payment.StatePaid:
				return errs.Mark(errs.New("booking already paid"), errs.ErrAlreadyFinalized)
			case payment.StatePending:
				t = existing
				return nil
			}
			// A failed attempt stays on record; retries reuse the same row by
			// moving it back through the provider, so block a second prepare.
			return errs.Mark(errs.New("previous payment attempt failed"), errs.ErrDuplicatePending)
		}
		if !infra.IsKind(err, infra.KindNotFound) {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}

		res, err := a.reconciler.ApplyInTx(ctx, tx, Event{
			Provider:  payment.ProviderOcto,
			BookingID: b.ID(),
			UserID:    b.UserID(),
			Amount:    b.FinalTotal(),
			Currency:  "UZS",
			State:     payment.StatePending,
		})
		if err != nil {
			return err
		}
		t = res.Transaction
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Pending tx exists and no locks are held; talk to Octo.
	octoResp, err := a.callPrepare(ctx, t)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrPaymentConfirmation)
	}

	err = a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		locked, err := tx.Transactions().FindByBookingForUpdate(ctx, payment.ProviderOcto, t.BookingID())
		if err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		locked.AttachProviderTxID(octoResp.OctoUUID, a.clock.Now())
		if err := tx.Transactions().Save(ctx, locked); err != nil {
			return errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		t = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &OctoPrepareResult{
		TransactionID: t.ID(),
		OctoPaymentID: octoResp.OctoUUID,
		PayURL:        octoResp.OctoPayURL,
	}, nil
}

func (a *OctoAdapter) callPrepare(ctx context.Context, t *payment.Transaction) (*octoPrepareResponse, error) {
	body, err := json.Marshal(octoPrepareRequest{
		OctoShopID:      a.cfg.ShopID,
		OctoSecret:      a.cfg.Secret,
		ShopTransaction: t.ID().String(),
		AutoCapture:     true,
		InitTime:        a.clock.Now().Format("2006-01-02 15:04:05"),
		TotalSum:        float64(t.Amount()),
		Currency:        t.Currency(),
		Description:     fmt.Sprintf("Booking %s", t.BookingID()),
		ReturnURL:       a.cfg.ReturnURL,
		NotifyURL:       a.cfg.NotifyURL,
	})
	if err != nil {
		return nil, errs.Wrap(err, "marshal octo prepare request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.PrepareURL, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(err, "build octo prepare request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, "octo prepare call failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.Wrap(err, "read octo prepare response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf("octo prepare returned status %d", resp.StatusCode)
	}

	var parsed octoPrepareResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errs.Wrap(err, "decode octo prepare response")
	}
	if parsed.Error != 0 {
		return nil, errs.Newf("octo prepare error %d: %s", parsed.Error, parsed.ErrMessage)
	}
	if parsed.OctoUUID == "" || parsed.OctoPayURL == "" {
		return nil, errs.New("octo prepare response missing payment id or pay url")
	}
	return &parsed, nil
}

// HandleCallback applies Octo's webhook. A bad signature is logged and
// flagged but the event is still processed and acked: Octo retries forever on
// non-acks and its sandbox is known to sign inconsistently.
func (a *OctoAdapter) HandleCallback(ctx context.Context, cb OctoCallback, raw []byte) OctoAck {
	if !a.verifySignature(cb) {
		a.logger.Error("octo callback signature mismatch",
			"octo_payment_uuid", cb.OctoPaymentUUID,
			"status", cb.Status)
	}

	state, ok := octoStateFor(cb.Status)
	if !ok {
		a.logger.Warn("octo callback with unmapped status", "status", cb.Status, "octo_payment_uuid", cb.OctoPaymentUUID)
		return OctoAck{Accept: true, Note: "status ignored"}
	}

	ev := Event{
		Provider:     payment.ProviderOcto,
		ProviderTxID: cb.OctoPaymentUUID,
		State:        state,
		Raw:          raw,
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", cb.PayedTime, a.clock.Now().Location()); err == nil {
		ev.PerformedAt = &ts
	}
	if state == payment.StateFailed {
		code := octoCancelCode
		ev.CancelCode = &code
	}

	err := a.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		t, err := a.resolveCallbackTx(ctx, tx, cb)
		if err != nil {
			return err
		}
		ev.BookingID = t.BookingID()
		ev.UserID = t.UserID()
		ev.Amount = t.Amount()
		ev.Currency = t.Currency()
		_, err = a.reconciler.ApplyInTx(ctx, tx, ev)
		return err
	})
	if err != nil {
		if errs.Is(err, errs.ErrTransactionNotFound) {
			a.logger.Error("octo callback for unknown transaction", "octo_payment_uuid", cb.OctoPaymentUUID)
			return OctoAck{Accept: true, Note: "transaction not found"}
		}
		a.logger.Error("octo callback failed", "error", err.Error(), "octo_payment_uuid", cb.OctoPaymentUUID)
		return OctoAck{Accept: true, Note: "processing error"}
	}
	return OctoAck{Accept: true}
}

// resolveCallbackTx locates the transaction by Octo's uuid, falling back to
// our own id from shop_transaction_id when the prepare response never made it
// back to us.
func (a *OctoAdapter) resolveCallbackTx(ctx context.Context, tx shared.Tx, cb OctoCallback) (*payment.Transaction, error) {
	t, err := tx.Transactions().FindByProviderTxIDForUpdate(ctx, payment.ProviderOcto, cb.OctoPaymentUUID)
	if err == nil {
		return t, nil
	}
	if !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	// shop_transaction_id carries our own transaction id.
	if id, parseErr := uuid.Parse(cb.ShopTransactionID); parseErr == nil {
		if own, err := tx.Transactions().FindByIDForUpdate(ctx, id); err == nil {
			return own, nil
		} else if !infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
	}
	return nil, errs.ErrTransactionNotFound
}

// verifySignature checks Octo's sha1(secret + payment uuid + status).
func (a *OctoAdapter) verifySignature(cb OctoCallback) bool {
	sum := sha1.Sum([]byte(a.cfg.Secret + cb.OctoPaymentUUID + cb.Status))
	return hex.EncodeToString(sum[:]) == strings.ToLower(cb.Signature)
}

// Octo reports cancellations by status string only; keep one stable reason
// code on our side.
const octoCancelCode = -1

func octoStateFor(status string) (payment.State, bool) {
	switch strings.ToLower(status) {
	case "succeeded", "captured", "paid":
		return payment.StatePaid, true
	case "cancelled", "canceled", "failed", "error", "refunded":
		return payment.StateFailed, true
	case "created", "waiting_for_capture":
		return payment.StatePending, true
	default:
		return 0, false
	}
}
