package api

import (
	"context"
	"errors"
	"net/http"

	"venuebook/internal/domain/booking"
	"venuebook/internal/handler/dto/request"
	"venuebook/internal/handler/dto/response"
	"venuebook/internal/handler/httperr"
	"venuebook/internal/handler/middleware"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/commands"
	"venuebook/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingHandler struct {
	commands commands.BookingCommands
	queries  queries.BookingQueries
}

func NewBookingHandler(cmds commands.BookingCommands, qs queries.BookingQueries) *BookingHandler {
	return &BookingHandler{
		commands: cmds,
		queries:  qs,
	}
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusInternalServerError, errs.New("missing user in context"), "Internal server error", nil)
		return
	}

	var req request.CreateBookingRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, bindErr, "Invalid request format", nil)
		return
	}

	params, err := req.ToParams(userID)
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid date format, expected YYYY-MM-DD", nil)
		return
	}

	b, err := h.commands.CreateBooking(c.Request.Context(), params)
	if err != nil {
		abortBookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.FromBooking(b))
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	view, err := h.queries.GetByID(c.Request.Context(), id)
	if err != nil {
		abortBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromBookingView(view))
}

func (h *BookingHandler) GetUserBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusInternalServerError, errs.New("missing user in context"), "Internal server error", nil)
		return
	}

	views, err := h.queries.ListByUser(c.Request.Context(), userID)
	if err != nil {
		abortBookingError(c, err)
		return
	}

	resp := make([]*response.BookingResponse, len(views))
	for i, v := range views {
		resp[i] = response.FromBookingView(v)
	}
	c.JSON(http.StatusOK, resp)
}

// GetCompetingBookings lists the other pending requests fighting for the same
// slots, for the host's selection screen.
func (h *BookingHandler) GetCompetingBookings(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	views, err := h.queries.ListCompeting(c.Request.Context(), id)
	if err != nil {
		abortBookingError(c, err)
		return
	}

	resp := make([]*response.BookingResponse, len(views))
	for i, v := range views {
		resp[i] = response.FromBookingView(v)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) SelectBooking(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	actor, ok := middleware.GetActor(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusInternalServerError, errs.New("missing actor in context"), "Internal server error", nil)
		return
	}

	result, err := h.commands.SelectBooking(c.Request.Context(), id, actor)
	if err != nil {
		abortBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SelectBookingResponse{
		Booking:  response.FromBooking(result.Booking),
		Rejected: result.Rejected,
	})
}

func (h *BookingHandler) ApproveBooking(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	actor, ok := middleware.GetActor(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusInternalServerError, errs.New("missing actor in context"), "Internal server error", nil)
		return
	}

	var req request.ApproveBookingRequest
	if c.Request.ContentLength > 0 {
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			httperr.AbortWithError(c, http.StatusBadRequest, bindErr, "Invalid request format", nil)
			return
		}
	}

	b, err := h.commands.ApproveBooking(c.Request.Context(), id, actor, req.Override)
	if err != nil {
		abortBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromBooking(b))
}

func (h *BookingHandler) RejectBooking(c *gin.Context) {
	h.transition(c, h.commands.RejectBooking)
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	h.transition(c, h.commands.CancelBooking)
}

func (h *BookingHandler) transition(c *gin.Context, apply func(ctx context.Context, id uuid.UUID, actor booking.Actor) (*booking.Booking, error)) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	actor, ok := middleware.GetActor(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusInternalServerError, errs.New("missing actor in context"), "Internal server error", nil)
		return
	}

	b, err := apply(c.Request.Context(), id, actor)
	if err != nil {
		abortBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.FromBooking(b))
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid booking ID format", nil)
		return uuid.Nil, false
	}
	return id, true
}

func abortBookingError(c *gin.Context, err error) {
	var conflict *commands.ConflictError
	switch {
	case errors.As(err, &conflict):
		httperr.AbortWithError(c, http.StatusUnprocessableEntity, err, "Slot conflicts with a confirmed booking", gin.H{
			"conflictingBookingId": conflict.BookingID,
			"conflictingSlot": gin.H{
				"date":      conflict.Slot.Date().Format("2006-01-02"),
				"startTime": conflict.Slot.StartTime(),
				"endTime":   conflict.Slot.EndTime(),
			},
		})
	case errors.Is(err, errs.ErrSpaceNotFound):
		httperr.AbortWithError(c, http.StatusNotFound, err, "Space not found", nil)
	case errors.Is(err, errs.ErrBookingNotFound):
		httperr.AbortWithError(c, http.StatusNotFound, err, "Booking not found", nil)
	case errors.Is(err, errs.ErrInvalidSlot):
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid slot", nil)
	case errors.Is(err, errs.ErrSlotUnavailable):
		httperr.AbortWithError(c, http.StatusUnprocessableEntity, err, "Slot is not available", nil)
	case errors.Is(err, errs.ErrPaymentConfirmation):
		// The caller can retry with override=true once they have confirmed
		// payment out of band.
		httperr.AbortWithError(c, http.StatusConflict, err, "Payment not confirmed for this booking", gin.H{
			"requiresPaymentConfirmation": true,
		})
	case errors.Is(err, errs.ErrAlreadyFinalized):
		httperr.AbortWithError(c, http.StatusConflict, err, "Booking is already finalized", nil)
	case errors.Is(err, errs.ErrNotBookingOwner):
		httperr.AbortWithError(c, http.StatusForbidden, err, "Not allowed to act on this booking", nil)
	case errors.Is(err, errs.ErrDomainValidation):
		httperr.AbortWithError(c, http.StatusUnprocessableEntity, err, "Domain validation failed", nil)
	default:
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
	}
}
