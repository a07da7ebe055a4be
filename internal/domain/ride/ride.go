package ride

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the ride lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Type is the requested vehicle/service category
type Type string

const (
	TypeBike     Type = "bike"
	TypeCabNonAC Type = "cab_non_ac"
	TypeCabAC    Type = "cab_ac"
	TypeParcel   Type = "parcel"
)

// PaymentMethod is how the rider intends to settle the fare
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentUPI  PaymentMethod = "upi"
)

// Coord is a WGS84 point in decimal degrees
type Coord struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Ride represents one trip/delivery request from creation to terminal state.
// Pickup, drop, price and pin are immutable after creation. DriverID is bound
// exactly once, by the accept transition.
type Ride struct {
	ID               uuid.UUID     `json:"id"`
	RiderID          uuid.UUID     `json:"rider_id"`
	RiderName        string        `json:"rider_name"`
	DriverID         *uuid.UUID    `json:"driver_id,omitempty"`
	DriverName       string        `json:"driver_name,omitempty"`
	Status           Status        `json:"status"`
	RideType         Type          `json:"ride_type"`
	Pickup           Coord         `json:"pickup"`
	Drop             Coord         `json:"drop"`
	Price            float64       `json:"price"`
	DurationMin      int           `json:"duration_min"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	PIN              string        `json:"-"`
	VisibleDriverIDs []uuid.UUID   `json:"visible_driver_ids,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	AcceptedAt       *time.Time    `json:"accepted_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
}

// IsValid validates the ride type
func (t Type) IsValid() bool {
	switch t {
	case TypeBike, TypeCabNonAC, TypeCabAC, TypeParcel:
		return true
	}
	return false
}

// IsValid validates the payment method
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentUPI:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are legal from s
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// CanAccept checks whether the accept transition is still open
func (r *Ride) CanAccept() bool {
	return r.Status == StatusPending
}

// CanComplete checks whether the ride can move to completed
func (r *Ride) CanComplete() bool {
	return r.Status == StatusAccepted
}

// CanCancel checks whether the ride can still be cancelled
func (r *Ride) CanCancel() bool {
	return r.Status == StatusPending || r.Status == StatusAccepted
}

// VisibleTo reports whether driverID was in the eligibility set computed at
// creation time
func (r *Ride) VisibleTo(driverID uuid.UUID) bool {
	for _, id := range r.VisibleDriverIDs {
		if id == driverID {
			return true
		}
	}
	return false
}
