package repository

import (
	"context"
	"errors"
	"time"

	"venuebook/internal/domain/payment"
	"venuebook/internal/infra"
	"venuebook/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrCodeUniqueViolation = "23505"

type TransactionRepository struct {
	db db.DBTX
}

func NewTransactionRepository(dbtx db.DBTX) *TransactionRepository {
	return &TransactionRepository{db: dbtx}
}

const transactionColumns = `
	id, provider, provider_tx_id, state, booking_id, user_id, amount, currency,
	provider_data, perform_date, cancel_reason, created_at, updated_at`

func (r *TransactionRepository) Create(ctx context.Context, t *payment.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (
			id, provider, provider_tx_id, state, booking_id, user_id, amount,
			currency, provider_data, perform_date, cancel_reason, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID(), t.Provider().String(), t.ProviderTxID(), int(t.State()), t.BookingID(), t.UserID(),
		t.Amount(), t.Currency(), t.ProviderData(), t.PerformDate(), t.CancelReason(),
		t.CreatedAt(), t.UpdatedAt(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation {
			// One row per (provider, booking): a concurrent create lost the race.
			return infra.WrapRepoErr("transaction already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create transaction", err)
	}
	return nil
}

func (r *TransactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	return r.findOne(ctx, `id = $1`, true, id)
}

func (r *TransactionRepository) FindByProviderTxID(ctx context.Context, provider payment.Provider, providerTxID string) (*payment.Transaction, error) {
	return r.findOne(ctx, `provider = $1 AND provider_tx_id = $2`, false, provider.String(), providerTxID)
}

func (r *TransactionRepository) FindByProviderTxIDForUpdate(ctx context.Context, provider payment.Provider, providerTxID string) (*payment.Transaction, error) {
	return r.findOne(ctx, `provider = $1 AND provider_tx_id = $2`, true, provider.String(), providerTxID)
}

func (r *TransactionRepository) FindByBooking(ctx context.Context, provider payment.Provider, bookingID uuid.UUID) (*payment.Transaction, error) {
	return r.findOne(ctx, `provider = $1 AND booking_id = $2`, false, provider.String(), bookingID)
}

func (r *TransactionRepository) FindByBookingForUpdate(ctx context.Context, provider payment.Provider, bookingID uuid.UUID) (*payment.Transaction, error) {
	return r.findOne(ctx, `provider = $1 AND booking_id = $2`, true, provider.String(), bookingID)
}

func (r *TransactionRepository) HasPaidForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM transactions WHERE booking_id = $1 AND state = 2)`,
		bookingID,
	).Scan(&exists)
	if err != nil {
		return false, infra.WrapRepoErr("failed to check paid transaction", err)
	}
	return exists, nil
}

func (r *TransactionRepository) Save(ctx context.Context, t *payment.Transaction) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions SET
			provider_tx_id = $2, state = $3, provider_data = $4, perform_date = $5,
			cancel_reason = $6, updated_at = $7
		WHERE id = $1`,
		t.ID(), t.ProviderTxID(), int(t.State()), t.ProviderData(), t.PerformDate(),
		t.CancelReason(), t.UpdatedAt(),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to save transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("transaction not found", nil, infra.KindNotFound)
	}
	return nil
}

func (r *TransactionRepository) findOne(ctx context.Context, where string, lock bool, args ...any) (*payment.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + where
	if lock {
		q += ` FOR UPDATE`
	}

	var (
		id           uuid.UUID
		provider     string
		providerTxID string
		state        int
		bookingID    uuid.UUID
		userID       uuid.UUID
		amount       int64
		currency     string
		providerData []byte
		performDate  *time.Time
		cancelReason *int
		createdAt    time.Time
		updatedAt    time.Time
	)
	err := r.db.QueryRow(ctx, q, args...).Scan(
		&id, &provider, &providerTxID, &state, &bookingID, &userID, &amount,
		&currency, &providerData, &performDate, &cancelReason, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("transaction not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find transaction", err)
	}

	return payment.ReconstructTransaction(
		id, payment.Provider(provider), providerTxID, payment.State(state),
		bookingID, userID, amount, currency, providerData,
		performDate, cancelReason, createdAt, updatedAt,
	), nil
}
