package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"venuebook/internal/domain/booking"
	"venuebook/internal/handler/api"
	"venuebook/internal/handler/middleware"
	"venuebook/internal/pkg/config"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

func NewRouter(
	engine *gin.Engine,
	cfg config.Config,
	bookingHandler *api.BookingHandler,
	availabilityHandler *api.AvailabilityHandler,
	paymentHandler *api.PaymentHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	setupMiddleware(engine, cfg)
	setupRoutes(engine, bookingHandler, availabilityHandler, paymentHandler, authMiddleware)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(cfg.Log))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(
	engine *gin.Engine,
	bookingHandler *api.BookingHandler,
	availabilityHandler *api.AvailabilityHandler,
	paymentHandler *api.PaymentHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	engine.GET("/health", healthCheck)

	// Provider callbacks authenticate with their own signatures, never JWT.
	providers := engine.Group("/payments")
	{
		addRoutes(providers, []route{
			{Method: http.MethodPost, Path: "/click/prepare", Handler: paymentHandler.ClickCallback},
			{Method: http.MethodPost, Path: "/click/complete", Handler: paymentHandler.ClickCallback},
			{Method: http.MethodPost, Path: "/payme", Handler: paymentHandler.PaymeCallback},
			{Method: http.MethodPost, Path: "/octo/callback", Handler: paymentHandler.OctoCallback},
		})
	}

	apiGroup := engine.Group("/api")
	{
		spaces := apiGroup.Group("/spaces")
		{
			addRoutes(spaces, []route{
				{Method: http.MethodGet, Path: "/:id/availability", Handler: availabilityHandler.GetSpaceAvailability},
			})
		}

		bookings := apiGroup.Group("/bookings")
		bookings.Use(authMiddleware.RequireAuth())
		{
			hostOnly := authMiddleware.RequireRole(booking.RoleHost)
			addRoutes(bookings, []route{
				{Method: http.MethodPost, Path: "", Handler: bookingHandler.CreateBooking},
				{Method: http.MethodGet, Path: "", Handler: bookingHandler.GetUserBookings},
				{Method: http.MethodGet, Path: "/:id", Handler: bookingHandler.GetBooking},
				{Method: http.MethodGet, Path: "/:id/competing", Handler: bookingHandler.GetCompetingBookings, Mw: []gin.HandlerFunc{hostOnly}},
				{Method: http.MethodPost, Path: "/:id/select", Handler: bookingHandler.SelectBooking, Mw: []gin.HandlerFunc{hostOnly}},
				{Method: http.MethodPost, Path: "/:id/approve", Handler: bookingHandler.ApproveBooking, Mw: []gin.HandlerFunc{hostOnly}},
				{Method: http.MethodPost, Path: "/:id/reject", Handler: bookingHandler.RejectBooking, Mw: []gin.HandlerFunc{hostOnly}},
				{Method: http.MethodPost, Path: "/:id/cancel", Handler: bookingHandler.CancelBooking},
			})
		}

		clientPayments := apiGroup.Group("/payments")
		clientPayments.Use(authMiddleware.RequireAuth())
		{
			addRoutes(clientPayments, []route{
				{Method: http.MethodPost, Path: "/octo/prepare", Handler: paymentHandler.OctoPrepare},
			})
		}
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
