package repository

import (
	"context"
	"errors"
	"time"

	"venuebook/internal/domain/booking"
	"venuebook/internal/infra"
	"venuebook/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BookingRepository struct {
	db db.DBTX
}

func NewBookingRepository(dbtx db.DBTX) *BookingRepository {
	return &BookingRepository{db: dbtx}
}

const bookingColumns = `
	b.id, b.space_id, b.user_id, b.status, b.total_price, b.final_total,
	b.unique_request_id, b.approved_at, b.paid_at, b.approved_override,
	b.payment_response, b.created_at, b.updated_at`

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bookings (
			id, space_id, user_id, status, total_price, final_total,
			unique_request_id, approved_at, paid_at, approved_override,
			payment_response, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		b.ID(), b.SpaceID(), b.UserID(), b.Status().String(), b.TotalPrice(), b.FinalTotal(),
		b.UniqueRequestID(), b.ApprovedAt(), b.PaidAt(), b.ApprovedOverride(),
		b.PaymentResponse(), b.CreatedAt(), b.UpdatedAt(),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to create booking", err)
	}

	for _, s := range b.Slots() {
		_, err := r.db.Exec(ctx, `
			INSERT INTO booking_slots (booking_id, date, start_time, end_time, day_of_week)
			VALUES ($1,$2,$3,$4,$5)`,
			b.ID(), s.Date(), s.StartTime(), s.EndTime(), int(s.DayOfWeek()),
		)
		if err != nil {
			return infra.WrapRepoErr("failed to create booking slot", err)
		}
	}
	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	return r.findByID(ctx, id, false)
}

func (r *BookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	return r.findByID(ctx, id, true)
}

func (r *BookingRepository) findByID(ctx context.Context, id uuid.UUID, lock bool) (*booking.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	row := r.db.QueryRow(ctx, q, id)
	b, err := r.scanBooking(ctx, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("booking not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find booking by ID", err)
	}
	return b, nil
}

func (r *BookingRepository) FindLiveBySpace(ctx context.Context, spaceID uuid.UUID, dates []time.Time) ([]*booking.Booking, error) {
	return r.findLiveBySpace(ctx, spaceID, dates, false)
}

func (r *BookingRepository) FindLiveBySpaceForUpdate(ctx context.Context, spaceID uuid.UUID, dates []time.Time) ([]*booking.Booking, error) {
	return r.findLiveBySpace(ctx, spaceID, dates, true)
}

func (r *BookingRepository) findLiveBySpace(ctx context.Context, spaceID uuid.UUID, dates []time.Time, lock bool) ([]*booking.Booking, error) {
	dateStrs := make([]string, len(dates))
	for i, d := range dates {
		dateStrs[i] = d.Format("2006-01-02")
	}

	rows, err := r.db.Query(ctx, liveBySpaceQuery(lock), spaceID, dateStrs)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find live bookings", err)
	}
	defer rows.Close()

	return r.collectBookings(ctx, rows)
}

// liveBySpaceQuery matches slots through a semi-join rather than a join plus
// DISTINCT: Postgres refuses FOR UPDATE combined with DISTINCT, and the lock
// variant serializes the conflict window of creation and compound select.
func liveBySpaceQuery(lock bool) string {
	q := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.space_id = $1
		  AND b.status IN ('pending','selected','approved')
		  AND b.id IN (SELECT booking_id FROM booking_slots WHERE date = ANY($2::date[]))
		ORDER BY b.created_at`
	if lock {
		q += ` FOR UPDATE`
	}
	return q
}

func (r *BookingRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*booking.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find bookings by user", err)
	}
	defer rows.Close()

	return r.collectBookings(ctx, rows)
}

func (r *BookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET
			status = $2, approved_at = $3, paid_at = $4, approved_override = $5,
			payment_response = $6, updated_at = $7
		WHERE id = $1`,
		b.ID(), b.Status().String(), b.ApprovedAt(), b.PaidAt(), b.ApprovedOverride(),
		b.PaymentResponse(), b.UpdatedAt(),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to save booking", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("booking not found", nil, infra.KindNotFound)
	}
	return nil
}

type bookingRow struct {
	id               uuid.UUID
	spaceID          uuid.UUID
	userID           uuid.UUID
	status           string
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

func (r *BookingRepository) scanBooking(ctx context.Context, row pgx.Row) (*booking.Booking, error) {
	var br bookingRow
	if err := row.Scan(
		&br.id, &br.spaceID, &br.userID, &br.status, &br.totalPrice, &br.finalTotal,
		&br.uniqueRequestID, &br.approvedAt, &br.paidAt, &br.approvedOverride,
		&br.paymentResponse, &br.createdAt, &br.updatedAt,
	); err != nil {
		return nil, err
	}
	return r.hydrate(ctx, br)
}

func (r *BookingRepository) collectBookings(ctx context.Context, rows pgx.Rows) ([]*booking.Booking, error) {
	var raw []bookingRow
	for rows.Next() {
		var br bookingRow
		if err := rows.Scan(
			&br.id, &br.spaceID, &br.userID, &br.status, &br.totalPrice, &br.finalTotal,
			&br.uniqueRequestID, &br.approvedAt, &br.paidAt, &br.approvedOverride,
			&br.paymentResponse, &br.createdAt, &br.updatedAt,
		); err != nil {
			return nil, infra.WrapRepoErr("failed to scan booking", err)
		}
		raw = append(raw, br)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read bookings", err)
	}

	result := make([]*booking.Booking, 0, len(raw))
	for _, br := range raw {
		b, err := r.hydrate(ctx, br)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to load booking slots", err)
		}
		result = append(result, b)
	}
	return result, nil
}

func (r *BookingRepository) hydrate(ctx context.Context, br bookingRow) (*booking.Booking, error) {
	slots, err := r.loadSlots(ctx, br.id)
	if err != nil {
		return nil, err
	}
	return booking.ReconstructBooking(
		br.id, br.spaceID, br.userID,
		slots,
		booking.Status(br.status),
		br.totalPrice, br.finalTotal,
		br.uniqueRequestID,
		br.approvedAt, br.paidAt,
		br.approvedOverride,
		br.paymentResponse,
		br.createdAt, br.updatedAt,
	), nil
}

func (r *BookingRepository) loadSlots(ctx context.Context, bookingID uuid.UUID) ([]booking.Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT date, start_time, end_time
		FROM booking_slots
		WHERE booking_id = $1
		ORDER BY date, start_time`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []booking.Slot
	for rows.Next() {
		var (
			date       time.Time
			start, end string
		)
		if err := rows.Scan(&date, &start, &end); err != nil {
			return nil, err
		}
		s, err := booking.NewSlot(date, start, end)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
