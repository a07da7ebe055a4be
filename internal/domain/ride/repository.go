package ride

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for ride data access. Implementations must
// make AcceptIfPending a single atomic conditional write: concurrent accepts
// of the same pending ride resolve to exactly one winner, every loser gets
// ErrStaleState.
type Repository interface {
	// Create inserts a new ride in pending state
	Create(ctx context.Context, r *Ride) error

	// GetByID retrieves a ride by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Ride, error)

	// AcceptIfPending binds the driver and moves the ride to accepted, only
	// if the current status is still pending. Eligibility against the
	// visible-driver set is checked first and reported as ErrNotEligible.
	AcceptIfPending(ctx context.Context, rideID, driverID uuid.UUID, driverName string, at time.Time) (*Ride, error)

	// CompleteIfAccepted moves the ride to completed, only if it is accepted
	// and bound to driverID
	CompleteIfAccepted(ctx context.Context, rideID, driverID uuid.UUID, at time.Time) (*Ride, error)

	// CancelIfActive moves the ride to cancelled from pending or accepted
	CancelIfActive(ctx context.Context, rideID uuid.UUID, at time.Time) (*Ride, error)

	// ListByRider returns the rider's rides, newest first
	ListByRider(ctx context.Context, riderID uuid.UUID, limit int) ([]*Ride, error)

	// WatchPendingFor is a live query: it delivers a snapshot of all pending
	// rides whose visible-driver set contains driverID, re-delivered whenever
	// the matching set changes, until ctx is cancelled. After cancellation
	// the channel is closed and nothing further is delivered.
	WatchPendingFor(ctx context.Context, driverID uuid.UUID) (<-chan []*Ride, error)

	// WatchRide delivers the ride's state on every change until ctx is
	// cancelled
	WatchRide(ctx context.Context, rideID uuid.UUID) (<-chan *Ride, error)
}
