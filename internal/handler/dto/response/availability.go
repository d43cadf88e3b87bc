package response

import (
	"venuebook/internal/domain/schedule"
	"venuebook/internal/usecase/queries"

	"github.com/google/uuid"
)

type BookedSlotResponse struct {
	BookingID uuid.UUID `json:"bookingId"`
	Date      string    `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Status    string    `json:"status"`
}

type AvailabilityResponse struct {
	SpaceID         uuid.UUID                    `json:"spaceId"`
	AvailableDates  []string                     `json:"availableDates"`
	StartTimes      []string                     `json:"startTimes,omitempty"`
	BookedSlots     []BookedSlotResponse         `json:"bookedSlots"`
	WorkingHours    map[string]schedule.DayHours `json:"workingHours"`
	MinBookingHours int                          `json:"minBookingHours"`
	CooldownMinutes int                          `json:"cooldownMinutes"`
}

func FromAvailabilityView(v *queries.AvailabilityView) *AvailabilityResponse {
	booked := make([]BookedSlotResponse, len(v.BookedSlots))
	for i, s := range v.BookedSlots {
		booked[i] = BookedSlotResponse(s)
	}
	return &AvailabilityResponse{
		SpaceID:         v.SpaceID,
		AvailableDates:  v.AvailableDates,
		StartTimes:      v.StartTimes,
		BookedSlots:     booked,
		WorkingHours:    v.WorkingHours,
		MinBookingHours: v.MinBookingHours,
		CooldownMinutes: v.CooldownMinutes,
	}
}
