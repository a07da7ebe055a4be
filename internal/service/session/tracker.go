package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/observability"
	"github.com/ridelink/ride-coordinator/pkg/logger"
)

var (
	// ErrPinMismatch is the user-facing verification failure; it never
	// carries the expected value
	ErrPinMismatch = errors.New("entered PIN does not match")
	// ErrPinNotVerified guards completion: the pickup PIN must have been
	// verified in this session first
	ErrPinNotVerified = errors.New("pickup PIN has not been verified for this ride")
	// ErrCancelNotAllowed rejects a cancellation by an actor with no claim
	// on the ride
	ErrCancelNotAllowed = errors.New("actor may not cancel this ride")
)

// Actor identifies who is asking for a cancellation
type Actor string

const (
	ActorRider  Actor = "rider"
	ActorDriver Actor = "driver"
)

// SettlementRequest is the wallet-affecting outcome of a completed ride.
// Cash rides settle outside the wallet and carry Amount for the record only.
type SettlementRequest struct {
	RideID        uuid.UUID
	RiderID       uuid.UUID
	DriverID      uuid.UUID
	Amount        float64
	PaymentMethod ride.PaymentMethod
}

// Tracker follows an accepted ride through pickup-PIN verification and
// completion. Verification state is per-session and in-memory: completion is
// only reachable after VerifyPin has succeeded here, so it can never race
// ahead of verification.
type Tracker struct {
	rides  ride.Repository
	logger *logger.Logger

	mu       sync.Mutex
	verified map[uuid.UUID]bool
}

// NewTracker creates a session tracker over the ride store
func NewTracker(rides ride.Repository, log *logger.Logger) *Tracker {
	return &Tracker{
		rides:    rides,
		logger:   log,
		verified: make(map[uuid.UUID]bool),
	}
}

// VerifyPin checks the entered pickup PIN against the ride's stored one.
// The entered value is trimmed and must be exactly 4 digits. Failure mutates
// nothing and reveals nothing about the stored PIN.
func (t *Tracker) VerifyPin(ctx context.Context, rideID uuid.UUID, enteredPin string) (bool, error) {
	r, err := t.rides.GetByID(ctx, rideID)
	if err != nil {
		return false, err
	}

	entered := strings.TrimSpace(enteredPin)
	if len(entered) != 4 || subtle.ConstantTimeCompare([]byte(entered), []byte(r.PIN)) != 1 {
		observability.PinFailures.Inc()
		t.logger.Info("Pickup PIN verification failed",
			logger.String("ride_id", rideID.String()),
		)
		return false, ErrPinMismatch
	}

	t.mu.Lock()
	t.verified[rideID] = true
	t.mu.Unlock()

	t.logger.Info("Pickup PIN verified",
		logger.String("ride_id", rideID.String()),
	)
	return true, nil
}

// CompleteRide transitions the ride to completed and produces the settlement
// request. It is permitted only after a successful VerifyPin for the same
// ride in this session, and only by the bound driver.
func (t *Tracker) CompleteRide(ctx context.Context, rideID, driverID uuid.UUID) (*SettlementRequest, error) {
	t.mu.Lock()
	ok := t.verified[rideID]
	t.mu.Unlock()
	if !ok {
		return nil, ErrPinNotVerified
	}

	completed, err := t.rides.CompleteIfAccepted(ctx, rideID, driverID, time.Now())
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	delete(t.verified, rideID)
	t.mu.Unlock()

	observability.RidesCompleted.Inc()
	t.logger.Info("Ride completed",
		logger.String("ride_id", rideID.String()),
		logger.String("driver_id", driverID.String()),
		logger.Float64("fare", completed.Price),
	)

	return &SettlementRequest{
		RideID:        completed.ID,
		RiderID:       completed.RiderID,
		DriverID:      driverID,
		Amount:        completed.Price,
		PaymentMethod: completed.PaymentMethod,
	}, nil
}

// CancelRide moves the ride to cancelled. The rider may cancel any time
// before completion; the driver only once bound and before completion.
// Cancellation never settles a payment.
func (t *Tracker) CancelRide(ctx context.Context, rideID uuid.UUID, actor Actor, actorID uuid.UUID) (*ride.Ride, error) {
	r, err := t.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	switch actor {
	case ActorRider:
		if r.RiderID != actorID {
			return nil, ErrCancelNotAllowed
		}
	case ActorDriver:
		if r.DriverID == nil || *r.DriverID != actorID {
			return nil, ErrCancelNotAllowed
		}
	default:
		return nil, ErrCancelNotAllowed
	}

	cancelled, err := t.rides.CancelIfActive(ctx, rideID, time.Now())
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	delete(t.verified, rideID)
	t.mu.Unlock()

	observability.RidesCancelled.Inc()
	t.logger.Info("Ride cancelled",
		logger.String("ride_id", rideID.String()),
		logger.String("actor", string(actor)),
	)
	return cancelled, nil
}
