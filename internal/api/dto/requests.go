package dto

import (
	"github.com/google/uuid"

	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
)

// CreateRideRequest represents a request to create a new ride. Coordinates
// are pointers so that 0 (equator, prime meridian) is a valid value and only
// an absent field fails binding.
type CreateRideRequest struct {
	PickupLatitude  *float64 `json:"pickup_latitude" binding:"required,min=-90,max=90"`
	PickupLongitude *float64 `json:"pickup_longitude" binding:"required,min=-180,max=180"`
	DropLatitude    *float64 `json:"drop_latitude" binding:"required,min=-90,max=90"`
	DropLongitude   *float64 `json:"drop_longitude" binding:"required,min=-180,max=180"`
	RideType        string  `json:"ride_type" binding:"required,oneof=bike cab_non_ac cab_ac parcel"`
	PaymentMethod   string  `json:"payment_method" binding:"required,oneof=cash upi"`
	DistanceKM      float64 `json:"distance_km"`
	DurationSec     float64 `json:"duration_sec"`
}

// UpdateLocationRequest represents a driver location update
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
}

// AcceptRideRequest represents a driver accepting a ride
type AcceptRideRequest struct {
	RideID string `json:"ride_id" binding:"required"`
}

// RejectRideRequest represents a driver dismissing a ride from their queue
type RejectRideRequest struct {
	RideID string `json:"ride_id" binding:"required"`
}

// VerifyPinRequest represents a driver submitting the rider's PIN
type VerifyPinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

// WalletRequest represents a wallet recharge or withdrawal
type WalletRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Note   string  `json:"note"`
}

// CreateUserRequest represents account registration
type CreateUserRequest struct {
	Role        string `json:"role" binding:"required,oneof=rider driver"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Gender      string `json:"gender"`
	DOB         string `json:"dob"`
	VehicleType string `json:"vehicle_type"`
}

// UpdateUserRequest represents a profile update
type UpdateUserRequest struct {
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	DOB         string `json:"dob"`
	VehicleType string `json:"vehicle_type"`
}

// TokenRequest asks for a signed API token for an existing account
type TokenRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// RideResponse is the public view of a ride
type RideResponse struct {
	ID            uuid.UUID  `json:"id"`
	RiderID       uuid.UUID  `json:"rider_id"`
	RiderName     string     `json:"rider_name,omitempty"`
	DriverID      *uuid.UUID `json:"driver_id,omitempty"`
	DriverName    string     `json:"driver_name,omitempty"`
	Status        string     `json:"status"`
	RideType      string     `json:"ride_type"`
	Pickup        Location   `json:"pickup"`
	Drop          Location   `json:"drop"`
	Price         float64    `json:"price"`
	DurationMin   int        `json:"duration_min"`
	PaymentMethod string     `json:"payment_method"`
	Pin           string     `json:"pin,omitempty"`
	CreatedAt     string     `json:"created_at"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewRideResponse converts a domain ride to its public view. The PIN is
// attached separately and only for the rider who owns the ride.
func NewRideResponse(r *ride.Ride) RideResponse {
	return RideResponse{
		ID:            r.ID,
		RiderID:       r.RiderID,
		RiderName:     r.RiderName,
		DriverID:      r.DriverID,
		DriverName:    r.DriverName,
		Status:        string(r.Status),
		RideType:      string(r.RideType),
		Pickup:        Location{Latitude: r.Pickup.Latitude, Longitude: r.Pickup.Longitude},
		Drop:          Location{Latitude: r.Drop.Latitude, Longitude: r.Drop.Longitude},
		Price:         r.Price,
		DurationMin:   r.DurationMin,
		PaymentMethod: string(r.PaymentMethod),
		CreatedAt:     r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// WalletResponse reports a balance after a ledger operation
type WalletResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance float64   `json:"balance"`
}

// TransactionsResponse lists wallet ledger entries newest first
type TransactionsResponse struct {
	UserID       uuid.UUID          `json:"user_id"`
	Transactions []user.Transaction `json:"transactions"`
}

// ErrorResponse is the uniform error envelope
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
