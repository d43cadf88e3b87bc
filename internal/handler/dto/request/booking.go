package request

import (
	"time"

	"venuebook/internal/usecase/commands"

	"github.com/google/uuid"
)

type SlotRequest struct {
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
}

type CreateBookingRequest struct {
	SpaceID uuid.UUID     `json:"spaceId" binding:"required"`
	Slots   []SlotRequest `json:"slots" binding:"required,min=1,dive"`
}

func (r CreateBookingRequest) ToParams(userID uuid.UUID) (commands.CreateBookingParams, error) {
	slots := make([]commands.SlotParams, 0, len(r.Slots))
	for _, s := range r.Slots {
		date, err := time.Parse("2006-01-02", s.Date)
		if err != nil {
			return commands.CreateBookingParams{}, err
		}
		slots = append(slots, commands.SlotParams{
			Date:      date,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}
	return commands.CreateBookingParams{
		SpaceID: r.SpaceID,
		UserID:  userID,
		Slots:   slots,
	}, nil
}

type ApproveBookingRequest struct {
	// Override approves without a settled payment on record; the action is
	// explicit and audited.
	Override bool `json:"override"`
}
