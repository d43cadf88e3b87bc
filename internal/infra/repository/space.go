package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"venuebook/internal/domain/schedule"
	"venuebook/internal/infra"
	"venuebook/internal/infra/db"
	"venuebook/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SpaceRepository struct {
	db db.DBTX
}

func NewSpaceRepository(dbtx db.DBTX) *SpaceRepository {
	return &SpaceRepository{db: dbtx}
}

func (r *SpaceRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.SpaceSnapshot, error) {
	var (
		snap            shared.SpaceSnapshot
		workingHours    []byte
		blockedDates    []byte
		blockedWeekdays []byte
		minHours        int
		cooldown        int
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, host_id, name, hour_price, currency,
		       working_hours, blocked_dates, blocked_weekdays,
		       min_booking_hours, cooldown_minutes
		FROM spaces WHERE id = $1`, id,
	).Scan(
		&snap.ID, &snap.HostID, &snap.Name, &snap.HourPrice, &snap.Currency,
		&workingHours, &blockedDates, &blockedWeekdays, &minHours, &cooldown,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("space not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find space by ID", err)
	}

	cfg, err := decodeAvailability(workingHours, blockedDates, blockedWeekdays, minHours, cooldown)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to decode space availability", err)
	}
	snap.Availability = cfg
	return &snap, nil
}

// Availability columns are stored as jsonb: working_hours keyed by weekday
// number ("0"-"6"), blocked_dates as "2006-01-02" strings, blocked_weekdays
// as numbers.
func decodeAvailability(workingHours, blockedDates, blockedWeekdays []byte, minHours, cooldown int) (schedule.Config, error) {
	cfg := schedule.Config{
		Hours:           map[time.Weekday]schedule.DayHours{},
		MinBookingHours: minHours,
		CooldownMinutes: cooldown,
	}

	if len(workingHours) > 0 {
		var hours map[string]schedule.DayHours
		if err := json.Unmarshal(workingHours, &hours); err != nil {
			return schedule.Config{}, err
		}
		for key, h := range hours {
			day, err := strconv.Atoi(key)
			if err != nil || day < 0 || day > 6 {
				return schedule.Config{}, errors.New("invalid weekday key " + key)
			}
			cfg.Hours[time.Weekday(day)] = h
		}
	}

	if len(blockedDates) > 0 {
		var dates []string
		if err := json.Unmarshal(blockedDates, &dates); err != nil {
			return schedule.Config{}, err
		}
		for _, s := range dates {
			d, err := time.Parse("2006-01-02", s)
			if err != nil {
				return schedule.Config{}, err
			}
			cfg.BlockedDates = append(cfg.BlockedDates, d)
		}
	}

	if len(blockedWeekdays) > 0 {
		var days []int
		if err := json.Unmarshal(blockedWeekdays, &days); err != nil {
			return schedule.Config{}, err
		}
		for _, d := range days {
			cfg.BlockedWeekdays = append(cfg.BlockedWeekdays, time.Weekday(d))
		}
	}

	return cfg, cfg.Validate()
}
