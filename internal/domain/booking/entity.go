package booking

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoSlots                     = errors.New("booking requires at least one slot")
	ErrHostOnly                    = errors.New("transition allowed for host only")
	ErrNotOwner                    = errors.New("only the owning client may cancel")
	ErrAlreadyFinalized            = errors.New("booking already finalized")
	ErrNotPending                  = errors.New("booking is not pending")
	ErrNotSelectable               = errors.New("only pending bookings can be selected")
	ErrPaymentConfirmationRequired = errors.New("requires payment confirmation")
)

// Booking is the aggregate the state machine operates on. Slots never change
// after creation; only status and the payment stamps do.
type Booking struct {
	id               uuid.UUID
	spaceID          uuid.UUID
	userID           uuid.UUID
	slots            []Slot
	status           Status
	totalPrice       int64
	finalTotal       int64
	uniqueRequestID  string
	approvedAt       *time.Time
	paidAt           *time.Time
	approvedOverride bool
	paymentResponse  []byte
	createdAt        time.Time
	updatedAt        time.Time
}

func NewBooking(spaceID, userID uuid.UUID, slots []Slot, totalPrice, finalTotal int64, now time.Time) (*Booking, error) {
	if len(slots) == 0 {
		return nil, ErrNoSlots
	}
	return &Booking{
		id:              uuid.New(),
		spaceID:         spaceID,
		userID:          userID,
		slots:           slots,
		status:          StatusPending,
		totalPrice:      totalPrice,
		finalTotal:      finalTotal,
		uniqueRequestID: newRequestID(),
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

func ReconstructBooking(
	id, spaceID, userID uuid.UUID,
	slots []Slot,
	status Status,
	totalPrice, finalTotal int64,
	uniqueRequestID string,
	approvedAt, paidAt *time.Time,
	approvedOverride bool,
	paymentResponse []byte,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:               id,
		spaceID:          spaceID,
		userID:           userID,
		slots:            slots,
		status:           status,
		totalPrice:       totalPrice,
		finalTotal:       finalTotal,
		uniqueRequestID:  uniqueRequestID,
		approvedAt:       approvedAt,
		paidAt:           paidAt,
		approvedOverride: approvedOverride,
		paymentResponse:  paymentResponse,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// Select moves a pending booking to selected. The "no competitor already
// selected/approved for the slot" precondition is checked by the caller,
// which sees all bookings for the space.
func (b *Booking) Select(actor Actor, now time.Time) error {
	if actor.Role != RoleHost {
		return ErrHostOnly
	}
	if b.status.IsTerminal() {
		return ErrAlreadyFinalized
	}
	if b.status != StatusPending {
		return ErrNotSelectable
	}
	b.setStatus(StatusSelected, now)
	return nil
}

// Approve finalizes a booking. A pending booking may be approved directly.
// A selected booking needs recorded payment evidence, or an explicit host
// override which is kept on the record for audit.
func (b *Booking) Approve(actor Actor, hasPaid, override bool, now time.Time) error {
	if actor.Role != RoleHost {
		return ErrHostOnly
	}
	if b.status.IsTerminal() {
		return ErrAlreadyFinalized
	}
	if b.status == StatusSelected && !hasPaid {
		if !override {
			return ErrPaymentConfirmationRequired
		}
		b.approvedOverride = true
	}
	b.setStatus(StatusApproved, now)
	if b.approvedAt == nil {
		t := now
		b.approvedAt = &t
	}
	return nil
}

func (b *Booking) Reject(actor Actor, now time.Time) error {
	if actor.Role != RoleHost {
		return ErrHostOnly
	}
	if b.status.IsTerminal() {
		return ErrAlreadyFinalized
	}
	b.setStatus(StatusRejected, now)
	return nil
}

// Cancel is the client-side exit, allowed until the booking is approved.
func (b *Booking) Cancel(actor Actor, now time.Time) error {
	if actor.Role != RoleClient || actor.UserID != b.userID {
		return ErrNotOwner
	}
	if b.status.IsTerminal() {
		return ErrAlreadyFinalized
	}
	b.setStatus(StatusCancelled, now)
	return nil
}

// ApplyPayment is the reconciliation entry point: a canonical paid result
// pushes the booking to approved and stamps paidAt/approvedAt exactly once.
// Already-approved bookings are a no-op; rejected/cancelled stay terminal.
func (b *Booking) ApplyPayment(paidAt, now time.Time) error {
	switch b.status {
	case StatusApproved:
		if b.paidAt == nil {
			t := paidAt
			b.paidAt = &t
			b.updatedAt = now
		}
		return nil
	case StatusRejected, StatusCancelled:
		return ErrAlreadyFinalized
	}
	b.setStatus(StatusApproved, now)
	t := paidAt
	b.paidAt = &t
	if b.approvedAt == nil {
		a := now
		b.approvedAt = &a
	}
	return nil
}

// SetPaymentResponse keeps the provider's raw payload for display/audit.
// Never authoritative for status decisions.
func (b *Booking) SetPaymentResponse(raw []byte, now time.Time) {
	b.paymentResponse = raw
	b.updatedAt = now
}

// OverlapsSlots reports whether any of the booking's slots overlaps any of
// the given slots.
func (b *Booking) OverlapsSlots(slots []Slot) bool {
	return OverlapsAny(b.slots, slots)
}

func (b *Booking) setStatus(s Status, now time.Time) {
	b.status = s
	b.updatedAt = now
}

func (b *Booking) ID() uuid.UUID           { return b.id }
func (b *Booking) SpaceID() uuid.UUID      { return b.spaceID }
func (b *Booking) UserID() uuid.UUID       { return b.userID }
func (b *Booking) Slots() []Slot           { return b.slots }
func (b *Booking) Status() Status          { return b.status }
func (b *Booking) TotalPrice() int64       { return b.totalPrice }
func (b *Booking) FinalTotal() int64       { return b.finalTotal }
func (b *Booking) UniqueRequestID() string { return b.uniqueRequestID }
func (b *Booking) ApprovedAt() *time.Time  { return b.approvedAt }
func (b *Booking) PaidAt() *time.Time      { return b.paidAt }
func (b *Booking) ApprovedOverride() bool  { return b.approvedOverride }
func (b *Booking) PaymentResponse() []byte { return b.paymentResponse }
func (b *Booking) CreatedAt() time.Time    { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time    { return b.updatedAt }

// newRequestID is the short code clients share with hosts over the phone.
func newRequestID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
