package response

import (
	"encoding/json"
	"time"

	"venuebook/internal/domain/booking"
	"venuebook/internal/usecase/queries"

	"github.com/google/uuid"
)

type SlotResponse struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	DayOfWeek int    `json:"dayOfWeek"`
}

type BookingResponse struct {
	ID              uuid.UUID       `json:"id"`
	SpaceID         uuid.UUID       `json:"spaceId"`
	UserID          uuid.UUID       `json:"userId"`
	Status          string          `json:"status"`
	Slots           []SlotResponse  `json:"slots"`
	TotalPrice      int64           `json:"totalPrice"`
	FinalTotal      int64           `json:"finalTotal"`
	UniqueRequestID string          `json:"uniqueRequestId"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentResponse json.RawMessage `json:"paymentResponse,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type SelectBookingResponse struct {
	Booking  *BookingResponse `json:"booking"`
	Rejected []uuid.UUID      `json:"rejectedBookingIds"`
}

func FromBookingView(v *queries.BookingView) *BookingResponse {
	slots := make([]SlotResponse, len(v.Slots))
	for i, s := range v.Slots {
		slots[i] = SlotResponse(s)
	}
	return &BookingResponse{
		ID:              v.ID,
		SpaceID:         v.SpaceID,
		UserID:          v.UserID,
		Status:          v.Status,
		Slots:           slots,
		TotalPrice:      v.TotalPrice,
		FinalTotal:      v.FinalTotal,
		UniqueRequestID: v.UniqueRequestID,
		ApprovedAt:      v.ApprovedAt,
		PaidAt:          v.PaidAt,
		PaymentResponse: v.PaymentResponse,
		CreatedAt:       v.CreatedAt,
	}
}

func FromBooking(b *booking.Booking) *BookingResponse {
	return FromBookingView(queries.BookingToView(b))
}
