package payments

import (
	"context"
	"log/slog"
	"time"

	"venuebook/internal/domain/booking"
	"venuebook/internal/domain/payment"
	"venuebook/internal/infra"
	"venuebook/internal/pkg/clock"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
)

// Event is one normalized inbound payment notification. Adapters translate
// their wire protocol into this and nothing else; the reconciliation
// algorithm below is provider-agnostic.
type Event struct {
	Provider     payment.Provider
	ProviderTxID string
	// BookingID may be uuid.Nil when only the provider's id is known
	// (create-path lookups).
	BookingID   uuid.UUID
	UserID      uuid.UUID
	Amount      int64
	Currency    string
	State       payment.State
	PerformedAt *time.Time
	CancelCode  *int
	Raw         []byte
}

type Result struct {
	Transaction *payment.Transaction
	// StateChanged is false for duplicate callbacks; the caller still acks.
	StateChanged bool
	// BookingApproved is true at most once per booking, on the callback that
	// actually moved it to approved.
	BookingApproved bool
}

// Reconciler folds provider events into the single Transaction row per
// (provider, booking) and, on a paid result, drives the booking to approved.
// Safe under duplicate and out-of-order delivery: terminal transaction states
// never move, and all mutations happen on locked rows.
type Reconciler struct {
	uow    shared.UnitOfWork
	clock  clock.Clock
	logger *slog.Logger
}

func NewReconciler(uow shared.UnitOfWork, clk clock.Clock, logger *slog.Logger) *Reconciler {
	return &Reconciler{uow: uow, clock: clk, logger: logger}
}

func (r *Reconciler) Apply(ctx context.Context, ev Event) (*Result, error) {
	var res *Result
	err := r.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		var err error
		res, err = r.ApplyInTx(ctx, tx, ev)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ApplyInTx runs the reconciliation algorithm on an open transaction, for
// adapters that need additional protocol checks inside the same critical
// section.
func (r *Reconciler) ApplyInTx(ctx context.Context, tx shared.Tx, ev Event) (*Result, error) {
	now := r.clock.Now()

	t, err := r.lookup(ctx, tx, ev)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if t == nil {
		t, err = r.create(ctx, tx, ev, now)
		if err != nil {
			return nil, err
		}
		res.StateChanged = true
	} else {
		if ev.ProviderTxID != "" {
			t.AttachProviderTxID(ev.ProviderTxID, now)
		}
		var changed bool
		if ev.State == payment.StateFailed && ev.CancelCode != nil {
			changed, err = t.Cancel(ev.CancelCode, now)
		} else {
			changed, err = t.ApplyState(ev.State, ev.PerformedAt, now)
		}
		if err != nil {
			return nil, errs.Mark(err, errs.ErrDomainValidation)
		}
		if len(ev.Raw) > 0 {
			t.SetProviderData(ev.Raw, now)
		}
		if err := tx.Transactions().Save(ctx, t); err != nil {
			return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
		res.StateChanged = changed
	}
	res.Transaction = t

	if t.State() == payment.StatePaid {
		approved, err := r.settleBooking(ctx, tx, t, ev.Raw, now)
		if err != nil {
			return nil, err
		}
		res.BookingApproved = approved
	}
	return res, nil
}

func (r *Reconciler) lookup(ctx context.Context, tx shared.Tx, ev Event) (*payment.Transaction, error) {
	if ev.ProviderTxID != "" {
		t, err := tx.Transactions().FindByProviderTxIDForUpdate(ctx, ev.Provider, ev.ProviderTxID)
		if err == nil {
			return t, nil
		}
		if !infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
	}
	if ev.BookingID != uuid.Nil {
		t, err := tx.Transactions().FindByBookingForUpdate(ctx, ev.Provider, ev.BookingID)
		if err == nil {
			return t, nil
		}
		if !infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
		}
	}
	return nil, nil
}

func (r *Reconciler) create(ctx context.Context, tx shared.Tx, ev Event, now time.Time) (*payment.Transaction, error) {
	// First contact: created pending, then moved to the event's state so a
	// terminal-on-arrival callback lands correctly.
	t, err := payment.NewTransaction(ev.Provider, ev.ProviderTxID, ev.BookingID, ev.UserID, ev.Amount, ev.Currency, payment.StatePending, now)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDomainValidation)
	}
	if ev.State != payment.StatePending {
		if ev.State == payment.StateFailed && ev.CancelCode != nil {
			_, err = t.Cancel(ev.CancelCode, now)
		} else {
			_, err = t.ApplyState(ev.State, ev.PerformedAt, now)
		}
		if err != nil {
			return nil, errs.Mark(err, errs.ErrDomainValidation)
		}
	}
	if len(ev.Raw) > 0 {
		t.SetProviderData(ev.Raw, now)
	}
	if err := tx.Transactions().Create(ctx, t); err != nil {
		if infra.IsKind(err, infra.KindDuplicateKey) {
			return nil, errs.Mark(err, errs.ErrDuplicatePending)
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return t, nil
}

// settleBooking pushes a paid transaction's booking to approved, stamping
// paidAt once with the provider-reported settlement time when present.
// A booking that is already approved is left alone; one that was rejected or
// cancelled is logged loudly and not resurrected.
func (r *Reconciler) settleBooking(ctx context.Context, tx shared.Tx, t *payment.Transaction, raw []byte, now time.Time) (bool, error) {
	b, err := tx.Bookings().FindByIDForUpdate(ctx, t.BookingID())
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return false, errs.ErrBookingNotFound
		}
		return false, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	wasApproved := b.Status() == booking.StatusApproved

	paidAt := now
	if t.PerformDate() != nil {
		paidAt = *t.PerformDate()
	}
	if err := b.ApplyPayment(paidAt, now); err != nil {
		r.logger.Error("paid transaction for finalized booking",
			"booking_id", b.ID(),
			"booking_status", b.Status().String(),
			"provider", t.Provider().String(),
			"provider_tx_id", t.ProviderTxID())
		return false, nil
	}
	if len(raw) > 0 {
		b.SetPaymentResponse(raw, now)
	}
	if err := tx.Bookings().Save(ctx, b); err != nil {
		return false, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return !wasApproved, nil
}
