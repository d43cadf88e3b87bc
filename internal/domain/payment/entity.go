package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidProvider = errors.New("unknown payment provider")
	ErrInvalidState    = errors.New("invalid transaction state")
)

// Transaction is the single reconciliation record for one (provider, booking)
// pair. Providers resend callbacks; the record is updated in place, never
// duplicated, and never deleted.
type Transaction struct {
	id           uuid.UUID
	provider     Provider
	providerTxID string
	state        State
	bookingID    uuid.UUID
	userID       uuid.UUID
	amount       int64
	currency     string
	providerData []byte
	performDate  *time.Time
	cancelReason *int
	createdAt    time.Time
	updatedAt    time.Time
}

func NewTransaction(
	provider Provider,
	providerTxID string,
	bookingID, userID uuid.UUID,
	amount int64,
	currency string,
	state State,
	now time.Time,
) (*Transaction, error) {
	if !provider.IsValid() {
		return nil, ErrInvalidProvider
	}
	if !state.IsValid() {
		return nil, ErrInvalidState
	}
	t := &Transaction{
		id:           uuid.New(),
		provider:     provider,
		providerTxID: providerTxID,
		state:        state,
		bookingID:    bookingID,
		userID:       userID,
		amount:       amount,
		currency:     currency,
		createdAt:    now,
		updatedAt:    now,
	}
	if state == StatePaid {
		d := now
		t.performDate = &d
	}
	return t, nil
}

func ReconstructTransaction(
	id uuid.UUID,
	provider Provider,
	providerTxID string,
	state State,
	bookingID, userID uuid.UUID,
	amount int64,
	currency string,
	providerData []byte,
	performDate *time.Time,
	cancelReason *int,
	createdAt, updatedAt time.Time,
) *Transaction {
	return &Transaction{
		id:           id,
		provider:     provider,
		providerTxID: providerTxID,
		state:        state,
		bookingID:    bookingID,
		userID:       userID,
		amount:       amount,
		currency:     currency,
		providerData: providerData,
		performDate:  performDate,
		cancelReason: cancelReason,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ApplyState moves the canonical state forward. Repeated callbacks with the
// same or a stale status fall out as changed=false, which is what makes the
// reconciliation idempotent. performedAt is the provider-reported settlement
// time; performDate is stamped exactly once, when the state first becomes paid.
func (t *Transaction) ApplyState(newState State, performedAt *time.Time, now time.Time) (changed bool, err error) {
	if !newState.IsValid() {
		return false, ErrInvalidState
	}
	if newState == t.state || t.state.IsTerminal() {
		return false, nil
	}
	t.state = newState
	t.updatedAt = now
	if newState == StatePaid && t.performDate == nil {
		d := now
		if performedAt != nil {
			d = *performedAt
		}
		t.performDate = &d
	}
	return true, nil
}

// Cancel records a caller-supplied provider reason code along with the
// failed state, for audit.
func (t *Transaction) Cancel(reason *int, now time.Time) (changed bool, err error) {
	changed, err = t.ApplyState(StateFailed, nil, now)
	if changed {
		t.cancelReason = reason
	}
	return changed, err
}

// AttachProviderTxID binds the provider's own identifier once it is known
// (prepare-path transactions are created before the provider assigns one).
func (t *Transaction) AttachProviderTxID(id string, now time.Time) {
	if t.providerTxID == "" {
		t.providerTxID = id
		t.updatedAt = now
	}
}

// SetProviderData snapshots the raw provider payload for audit.
func (t *Transaction) SetProviderData(raw []byte, now time.Time) {
	t.providerData = raw
	t.updatedAt = now
}

func (t *Transaction) ID() uuid.UUID           { return t.id }
func (t *Transaction) Provider() Provider      { return t.provider }
func (t *Transaction) ProviderTxID() string    { return t.providerTxID }
func (t *Transaction) State() State            { return t.state }
func (t *Transaction) BookingID() uuid.UUID    { return t.bookingID }
func (t *Transaction) UserID() uuid.UUID       { return t.userID }
func (t *Transaction) Amount() int64           { return t.amount }
func (t *Transaction) Currency() string        { return t.currency }
func (t *Transaction) ProviderData() []byte    { return t.providerData }
func (t *Transaction) PerformDate() *time.Time { return t.performDate }
func (t *Transaction) CancelReason() *int      { return t.cancelReason }
func (t *Transaction) CreatedAt() time.Time    { return t.createdAt }
func (t *Transaction) UpdatedAt() time.Time    { return t.updatedAt }
