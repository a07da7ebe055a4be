package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/storage"
	"github.com/ridelink/ride-coordinator/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	tracker  *Tracker
	store    *storage.MemoryRideStore
	rideID   uuid.UUID
	riderID  uuid.UUID
	driverID uuid.UUID
}

func newAcceptedRide(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryRideStore()
	riderID := uuid.New()
	driverID := uuid.New()

	r := &ride.Ride{
		ID:               uuid.New(),
		RiderID:          riderID,
		RiderName:        "Asha",
		Status:           ride.StatusPending,
		RideType:         ride.TypeBike,
		Pickup:           ride.Coord{Latitude: 22.5726, Longitude: 88.3639},
		Drop:             ride.Coord{Latitude: 22.6, Longitude: 88.4},
		Price:            110,
		PaymentMethod:    ride.PaymentUPI,
		PIN:              "4821",
		VisibleDriverIDs: []uuid.UUID{driverID},
		CreatedAt:        time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), r))
	_, err := store.AcceptIfPending(context.Background(), r.ID, driverID, "Ravi", time.Now())
	require.NoError(t, err)

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	return &fixture{
		tracker:  NewTracker(store, log),
		store:    store,
		rideID:   r.ID,
		riderID:  riderID,
		driverID: driverID,
	}
}

func TestVerifyPin(t *testing.T) {
	tests := []struct {
		name    string
		entered string
		want    bool
	}{
		{"exact match", "4821", true},
		{"surrounding whitespace trimmed", " 4821 ", true},
		{"wrong digit", "4822", false},
		{"too short", "482", false},
		{"too long", "48211", false},
		{"empty", "", false},
		{"whitespace only", "    ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAcceptedRide(t)
			ok, err := f.tracker.VerifyPin(context.Background(), f.rideID, tt.entered)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrPinMismatch)
				// the error must not leak the stored PIN
				assert.NotContains(t, err.Error(), "4821")
			}
		})
	}
}

func TestVerifyPin_FailureDoesNotMutate(t *testing.T) {
	f := newAcceptedRide(t)

	_, err := f.tracker.VerifyPin(context.Background(), f.rideID, "0000")
	assert.ErrorIs(t, err, ErrPinMismatch)

	got, err := f.store.GetByID(context.Background(), f.rideID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusAccepted, got.Status)

	// failed verification must not unlock completion
	_, err = f.tracker.CompleteRide(context.Background(), f.rideID, f.driverID)
	assert.ErrorIs(t, err, ErrPinNotVerified)
}

func TestCompleteRide_RequiresVerification(t *testing.T) {
	f := newAcceptedRide(t)

	_, err := f.tracker.CompleteRide(context.Background(), f.rideID, f.driverID)
	assert.ErrorIs(t, err, ErrPinNotVerified)

	ok, err := f.tracker.VerifyPin(context.Background(), f.rideID, "4821")
	require.NoError(t, err)
	require.True(t, ok)

	settlement, err := f.tracker.CompleteRide(context.Background(), f.rideID, f.driverID)
	require.NoError(t, err)
	assert.Equal(t, f.rideID, settlement.RideID)
	assert.Equal(t, f.riderID, settlement.RiderID)
	assert.Equal(t, f.driverID, settlement.DriverID)
	assert.Equal(t, 110.0, settlement.Amount)
	assert.Equal(t, ride.PaymentUPI, settlement.PaymentMethod)

	got, err := f.store.GetByID(context.Background(), f.rideID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusCompleted, got.Status)
}

func TestCompleteRide_OnlyBoundDriver(t *testing.T) {
	f := newAcceptedRide(t)

	ok, err := f.tracker.VerifyPin(context.Background(), f.rideID, "4821")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.tracker.CompleteRide(context.Background(), f.rideID, uuid.New())
	assert.ErrorIs(t, err, ride.ErrStaleState)
}

func TestCompleteRide_VerificationNotReusable(t *testing.T) {
	f := newAcceptedRide(t)

	ok, err := f.tracker.VerifyPin(context.Background(), f.rideID, "4821")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.tracker.CompleteRide(context.Background(), f.rideID, f.driverID)
	require.NoError(t, err)

	// terminal state plus consumed verification
	_, err = f.tracker.CompleteRide(context.Background(), f.rideID, f.driverID)
	assert.ErrorIs(t, err, ErrPinNotVerified)
}

func TestCancelRide_ByRider(t *testing.T) {
	f := newAcceptedRide(t)

	cancelled, err := f.tracker.CancelRide(context.Background(), f.rideID, ActorRider, f.riderID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusCancelled, cancelled.Status)
}

func TestCancelRide_WrongActorRejected(t *testing.T) {
	f := newAcceptedRide(t)

	_, err := f.tracker.CancelRide(context.Background(), f.rideID, ActorRider, uuid.New())
	assert.ErrorIs(t, err, ErrCancelNotAllowed)

	_, err = f.tracker.CancelRide(context.Background(), f.rideID, ActorDriver, uuid.New())
	assert.ErrorIs(t, err, ErrCancelNotAllowed)
}

func TestCancelRide_AfterCompletionIsStale(t *testing.T) {
	f := newAcceptedRide(t)

	ok, err := f.tracker.VerifyPin(context.Background(), f.rideID, "4821")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.tracker.CompleteRide(context.Background(), f.rideID, f.driverID)
	require.NoError(t, err)

	_, err = f.tracker.CancelRide(context.Background(), f.rideID, ActorRider, f.riderID)
	assert.ErrorIs(t, err, ride.ErrStaleState)
}
