package booking

import (
	"errors"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSelected  Status = "selected"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSelected, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsLive reports whether the booking still occupies its slot for conflict
// purposes. Rejected/cancelled bookings never conflict.
func (s Status) IsLive() bool {
	switch s {
	case StatusPending, StatusSelected, StatusApproved:
		return true
	default:
		return false
	}
}

type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

func (r Role) String() string {
	return string(r)
}

func NewRole(s string) (Role, error) {
	switch Role(s) {
	case RoleHost, RoleClient:
		return Role(s), nil
	default:
		return "", errors.New("unknown role: " + s)
	}
}

// Actor identifies who is requesting a transition. Hosts act on any booking
// of their space; clients only on their own.
type Actor struct {
	Role   Role
	UserID uuid.UUID
}

func HostActor(userID uuid.UUID) Actor {
	return Actor{Role: RoleHost, UserID: userID}
}

func ClientActor(userID uuid.UUID) Actor {
	return Actor{Role: RoleClient, UserID: userID}
}
