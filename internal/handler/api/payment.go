package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"venuebook/internal/handler/httperr"
	"venuebook/internal/handler/middleware"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/payments"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxCallbackBody = 1 << 20

// PaymentHandler terminates the three provider wire protocols. Providers get
// their own error vocabulary in a 200 body; HTTP errors would only make them
// retry blindly.
type PaymentHandler struct {
	click *payments.ClickAdapter
	payme *payments.PaymeAdapter
	octo  *payments.OctoAdapter
}

func NewPaymentHandler(click *payments.ClickAdapter, payme *payments.PaymeAdapter, octo *payments.OctoAdapter) *PaymentHandler {
	return &PaymentHandler{click: click, payme: payme, octo: octo}
}

// ClickCallback serves both prepare and complete; the action field in the
// form decides which.
func (h *PaymentHandler) ClickCallback(c *gin.Context) {
	var req payments.ClickRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"error": -8, "error_note": "bad request"})
		return
	}
	c.JSON(http.StatusOK, h.click.Handle(c.Request.Context(), req))
}

func (h *PaymentHandler) PaymeCallback(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		c.JSON(http.StatusOK, payments.PaymeResponse{Error: payments.PaymeParseError()})
		return
	}

	var req payments.PaymeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusOK, payments.PaymeResponse{Error: payments.PaymeParseError()})
		return
	}
	req.Raw = raw

	if !h.payme.VerifyAuth(c.GetHeader("Authorization")) {
		c.JSON(http.StatusOK, payments.PaymeResponse{ID: req.ID, Error: payments.PaymeAuthError()})
		return
	}

	c.JSON(http.StatusOK, h.payme.Handle(c.Request.Context(), req))
}

type octoPrepareBody struct {
	BookingID uuid.UUID `json:"bookingId" binding:"required"`
}

// OctoPrepare is the client-facing endpoint that registers the payment with
// Octo and returns the redirect URL.
func (h *PaymentHandler) OctoPrepare(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusInternalServerError, errs.New("missing user in context"), "Internal server error", nil)
		return
	}

	var body octoPrepareBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request format", nil)
		return
	}

	result, err := h.octo.Prepare(c.Request.Context(), body.BookingID, userID)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrBookingNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "Booking not found", nil)
		case errors.Is(err, errs.ErrNotBookingOwner):
			httperr.AbortWithError(c, http.StatusForbidden, err, "Not allowed to pay for this booking", nil)
		case errors.Is(err, errs.ErrAlreadyFinalized), errors.Is(err, errs.ErrDuplicatePending):
			httperr.AbortWithError(c, http.StatusConflict, err, "Booking cannot accept a new payment", nil)
		case errors.Is(err, errs.ErrPaymentConfirmation):
			httperr.AbortWithError(c, http.StatusBadGateway, err, "Payment provider is unavailable", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) OctoCallback(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		c.JSON(http.StatusOK, payments.OctoAck{Accept: true, Note: "unreadable body"})
		return
	}

	var cb payments.OctoCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		c.JSON(http.StatusOK, payments.OctoAck{Accept: true, Note: "unparseable body"})
		return
	}

	c.JSON(http.StatusOK, h.octo.HandleCallback(c.Request.Context(), cb, raw))
}
