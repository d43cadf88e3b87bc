package errs

import "errors"

// Domain-specific sentinel errors shared by the usecase layers
var (
	// Space errors
	ErrSpaceNotFound = errors.New("space not found")

	// Booking errors
	ErrBookingNotFound      = errors.New("booking not found")
	ErrSlotConflict         = errors.New("slot conflict")
	ErrSlotUnavailable      = errors.New("slot unavailable")
	ErrAlreadyFinalized     = errors.New("booking already finalized")
	ErrPaymentConfirmation  = errors.New("requires payment confirmation")
	ErrNotBookingOwner      = errors.New("not the booking owner")
	ErrInvalidSlot          = errors.New("invalid slot")

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicatePending    = errors.New("duplicate pending transaction")

	// Validation errors
	ErrDomainValidation = errors.New("domain validation error")

	// Operation errors
	ErrDatabaseOperationFailed = errors.New("database operation failed")
)
