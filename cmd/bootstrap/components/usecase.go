package components

import (
	"venuebook/internal/pkg/clock"
	"venuebook/internal/pkg/config"
	"venuebook/internal/usecase"
	"venuebook/internal/usecase/commands"
	"venuebook/internal/usecase/payments"
	"venuebook/internal/usecase/queries"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseCommandsModule,
	usecaseQueriesModule,
	usecasePaymentsModule,
	usecaseValidatorsModule,
)

var usecaseBaseOption = fx.Provide(
	NewBookingClock,
)

// NewBookingClock pins every availability computation to the configured
// civil zone, not server local time.
func NewBookingClock(cfg config.Config) (clock.Clock, error) {
	return clock.NewRegionClock(cfg.Booking.TimeZone)
}

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		commands.NewBookingUseCase,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewBookingQueries,
		queries.NewAvailabilityQueries,
	),
)

var usecasePaymentsModule = fx.Module("usecase/payments",
	fx.Provide(
		payments.NewReconciler,
		func(cfg config.Config) config.ClickConfig { return cfg.Click },
		func(cfg config.Config) config.PaymeConfig { return cfg.Payme },
		func(cfg config.Config) config.OctoConfig { return cfg.Octo },
		payments.NewClickAdapter,
		payments.NewPaymeAdapter,
		payments.NewOctoAdapter,
	),
)

var usecaseValidatorsModule = fx.Module("usecase/validators",
	fx.Provide(
		usecase.NewTokenValidator,
	),
)
