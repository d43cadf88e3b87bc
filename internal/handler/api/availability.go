package api

import (
	"errors"
	"net/http"
	"time"

	"venuebook/internal/handler/dto/response"
	"venuebook/internal/handler/httperr"
	"venuebook/internal/pkg/errs"
	"venuebook/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AvailabilityHandler struct {
	queries queries.AvailabilityQueries
}

func NewAvailabilityHandler(qs queries.AvailabilityQueries) *AvailabilityHandler {
	return &AvailabilityHandler{queries: qs}
}

// GetSpaceAvailability returns the bookable calendar for a space. With a
// ?date=YYYY-MM-DD query it also lists the valid start times for that date.
func (h *AvailabilityHandler) GetSpaceAvailability(c *gin.Context) {
	spaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid space ID format", nil)
		return
	}

	var date *time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid date format, expected YYYY-MM-DD", nil)
			return
		}
		date = &parsed
	}

	view, err := h.queries.GetSpaceAvailability(c.Request.Context(), spaceID, date)
	if err != nil {
		if errors.Is(err, errs.ErrSpaceNotFound) {
			httperr.AbortWithError(c, http.StatusNotFound, err, "Space not found", nil)
			return
		}
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		return
	}
	c.JSON(http.StatusOK, response.FromAvailabilityView(view))
}
