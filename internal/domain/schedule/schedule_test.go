//go:build unit

package schedule_test

import (
	"testing"
	"time"

	"venuebook/internal/domain/schedule"
	"venuebook/internal/pkg/clock"
	"venuebook/tests/common/builder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableStartTimes(t *testing.T) {
	cfg := builder.NewScheduleConfig()

	t.Run("mid-day on the requested date trims earlier hours", func(t *testing.T) {
		// 10:15 rounds up to 11:00; the last start leaving room for 2h + 30m
		// before 17:00 is 14:00.
		now := time.Date(2026, 9, 14, 10, 15, 0, 0, time.UTC)
		clk := clock.NewMockClock(now)

		starts, err := schedule.AvailableStartTimes(clk, builder.DefaultDate, cfg)
		require.NoError(t, err)
		assert.Equal(t, []int{11, 12, 13, 14}, starts)
	})

	t.Run("exact hour boundary is kept", func(t *testing.T) {
		now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
		clk := clock.NewMockClock(now)

		starts, err := schedule.AvailableStartTimes(clk, builder.DefaultDate, cfg)
		require.NoError(t, err)
		assert.Equal(t, []int{10, 11, 12, 13, 14}, starts)
	})

	t.Run("future dates are never hour-filtered", func(t *testing.T) {
		now := time.Date(2026, 9, 14, 16, 45, 0, 0, time.UTC)
		clk := clock.NewMockClock(now)

		starts, err := schedule.AvailableStartTimes(clk, builder.DefaultDate.AddDate(0, 0, 1), cfg)
		require.NoError(t, err)
		assert.Equal(t, []int{9, 10, 11, 12, 13, 14}, starts)
	})

	t.Run("no cooldown allows the last full slot", func(t *testing.T) {
		noCooldown := builder.NewScheduleConfig()
		noCooldown.CooldownMinutes = 0
		clk := clock.NewMockClock(time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC))

		starts, err := schedule.AvailableStartTimes(clk, builder.DefaultDate, noCooldown)
		require.NoError(t, err)
		assert.Equal(t, []int{9, 10, 11, 12, 13, 14, 15}, starts)
	})

	t.Run("a date in the past is closed", func(t *testing.T) {
		now := builder.DefaultDate.AddDate(0, 0, 1).Add(8 * time.Hour)
		clk := clock.NewMockClock(now)

		starts, err := schedule.AvailableStartTimes(clk, builder.DefaultDate, cfg)
		assert.ErrorIs(t, err, schedule.ErrClosedDate)
		assert.Empty(t, starts)
	})

	t.Run("closed weekday returns an error", func(t *testing.T) {
		cfgClosed := builder.NewScheduleConfig()
		delete(cfgClosed.Hours, time.Monday)
		clk := clock.NewMockClock(time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC))

		_, err := schedule.AvailableStartTimes(clk, builder.DefaultDate, cfgClosed)
		assert.ErrorIs(t, err, schedule.ErrClosedDate)
	})

	t.Run("blocked date returns an error", func(t *testing.T) {
		cfgBlocked := builder.NewScheduleConfig()
		cfgBlocked.BlockedDates = []time.Time{builder.DefaultDate}
		clk := clock.NewMockClock(time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC))

		_, err := schedule.AvailableStartTimes(clk, builder.DefaultDate, cfgBlocked)
		assert.ErrorIs(t, err, schedule.ErrClosedDate)
	})

	t.Run("after closing there are no starts", func(t *testing.T) {
		now := time.Date(2026, 9, 14, 16, 30, 0, 0, time.UTC)
		clk := clock.NewMockClock(now)

		starts, err := schedule.AvailableStartTimes(clk, builder.DefaultDate, cfg)
		require.NoError(t, err)
		assert.Empty(t, starts)
	})
}

func TestAvailableDates(t *testing.T) {
	cfg := builder.NewScheduleConfig()
	now := time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)

	t.Run("past dates are excluded", func(t *testing.T) {
		from := now.AddDate(0, 0, -3)
		to := now.AddDate(0, 0, 3)

		dates := schedule.AvailableDates(clk, from, to, cfg)
		require.Len(t, dates, 4)
		assert.True(t, clock.SameDate(dates[0], now))
	})

	t.Run("blocked weekdays are excluded", func(t *testing.T) {
		cfgBlocked := builder.NewScheduleConfig()
		cfgBlocked.BlockedWeekdays = []time.Weekday{time.Tuesday}

		dates := schedule.AvailableDates(clk, now, now.AddDate(0, 0, 6), cfgBlocked)
		for _, d := range dates {
			assert.NotEqual(t, time.Tuesday, d.Weekday())
		}
		assert.Len(t, dates, 6)
	})

	t.Run("blocked dates are excluded", func(t *testing.T) {
		blocked := now.AddDate(0, 0, 2)
		cfgBlocked := builder.NewScheduleConfig()
		cfgBlocked.BlockedDates = []time.Time{blocked}

		dates := schedule.AvailableDates(clk, now, now.AddDate(0, 0, 4), cfgBlocked)
		for _, d := range dates {
			assert.False(t, clock.SameDate(d, blocked))
		}
		assert.Len(t, dates, 4)
	})

	t.Run("days without configured hours are excluded", func(t *testing.T) {
		weekdaysOnly := builder.NewScheduleConfig()
		delete(weekdaysOnly.Hours, time.Saturday)
		delete(weekdaysOnly.Hours, time.Sunday)

		dates := schedule.AvailableDates(clk, now, now.AddDate(0, 0, 13), weekdaysOnly)
		assert.Len(t, dates, 10)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid baseline", func(t *testing.T) {
		require.NoError(t, builder.NewScheduleConfig().Validate())
	})

	t.Run("end before start", func(t *testing.T) {
		cfg := builder.NewScheduleConfig()
		cfg.Hours[time.Monday] = schedule.DayHours{Start: "17:00", End: "09:00"}
		assert.ErrorIs(t, cfg.Validate(), schedule.ErrInvalidHours)
	})

	t.Run("negative durations", func(t *testing.T) {
		cfg := builder.NewScheduleConfig()
		cfg.MinBookingHours = -1
		assert.ErrorIs(t, cfg.Validate(), schedule.ErrInvalidDuration)
	})

	t.Run("unparseable hours", func(t *testing.T) {
		cfg := builder.NewScheduleConfig()
		cfg.Hours[time.Monday] = schedule.DayHours{Start: "morning", End: "17:00"}
		assert.Error(t, cfg.Validate())
	})
}

func TestParseHour(t *testing.T) {
	h, err := schedule.ParseHour("09:00")
	require.NoError(t, err)
	assert.Equal(t, 9, h)

	_, err = schedule.ParseHour("25:00")
	assert.Error(t, err)

	assert.Equal(t, "09:00", schedule.FormatHour(9))
}
