package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingRide(t *testing.T, store *MemoryRideStore, visible ...uuid.UUID) *ride.Ride {
	t.Helper()
	r := &ride.Ride{
		ID:               uuid.New(),
		RiderID:          uuid.New(),
		RiderName:        "Asha",
		Status:           ride.StatusPending,
		RideType:         ride.TypeBike,
		Pickup:           ride.Coord{Latitude: 22.5726, Longitude: 88.3639},
		Drop:             ride.Coord{Latitude: 22.58, Longitude: 88.37},
		Price:            46,
		PaymentMethod:    ride.PaymentCash,
		PIN:              "4821",
		VisibleDriverIDs: visible,
		CreatedAt:        time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), r))
	return r
}

func TestAcceptIfPending_ExactlyOneWinner(t *testing.T) {
	store := NewMemoryRideStore()

	const drivers = 16
	visible := make([]uuid.UUID, drivers)
	for i := range visible {
		visible[i] = uuid.New()
	}
	r := newPendingRide(t, store, visible...)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		stale   int
	)
	for _, driverID := range visible {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := store.AcceptIfPending(context.Background(), r.ID, id, "driver", time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				winners = append(winners, id)
			case ride.ErrStaleState:
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(driverID)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, drivers-1, stale)

	got, err := store.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusAccepted, got.Status)
	require.NotNil(t, got.DriverID)
	assert.Equal(t, winners[0], *got.DriverID)
}

func TestAcceptIfPending_NotEligible(t *testing.T) {
	store := NewMemoryRideStore()
	r := newPendingRide(t, store, uuid.New())

	_, err := store.AcceptIfPending(context.Background(), r.ID, uuid.New(), "stranger", time.Now())
	assert.ErrorIs(t, err, ride.ErrNotEligible)

	got, _ := store.GetByID(context.Background(), r.ID)
	assert.Equal(t, ride.StatusPending, got.Status)
}

func TestCompleteIfAccepted_RequiresBoundDriver(t *testing.T) {
	store := NewMemoryRideStore()
	driverID := uuid.New()
	r := newPendingRide(t, store, driverID)

	// not yet accepted
	_, err := store.CompleteIfAccepted(context.Background(), r.ID, driverID, time.Now())
	assert.ErrorIs(t, err, ride.ErrStaleState)

	_, err = store.AcceptIfPending(context.Background(), r.ID, driverID, "driver", time.Now())
	require.NoError(t, err)

	// a different driver cannot complete
	_, err = store.CompleteIfAccepted(context.Background(), r.ID, uuid.New(), time.Now())
	assert.ErrorIs(t, err, ride.ErrStaleState)

	got, err := store.CompleteIfAccepted(context.Background(), r.ID, driverID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, ride.StatusCompleted, got.Status)
}

func TestCancelIfActive_TerminalStatesRejected(t *testing.T) {
	store := NewMemoryRideStore()
	driverID := uuid.New()
	r := newPendingRide(t, store, driverID)

	_, err := store.CancelIfActive(context.Background(), r.ID, time.Now())
	require.NoError(t, err)

	// cancelled is terminal
	_, err = store.CancelIfActive(context.Background(), r.ID, time.Now())
	assert.ErrorIs(t, err, ride.ErrStaleState)
	_, err = store.AcceptIfPending(context.Background(), r.ID, driverID, "driver", time.Now())
	assert.ErrorIs(t, err, ride.ErrStaleState)
}

func TestCompletedRide_ReadsAreStable(t *testing.T) {
	store := NewMemoryRideStore()
	driverID := uuid.New()
	r := newPendingRide(t, store, driverID)

	_, err := store.AcceptIfPending(context.Background(), r.ID, driverID, "driver", time.Now())
	require.NoError(t, err)
	_, err = store.CompleteIfAccepted(context.Background(), r.ID, driverID, time.Now())
	require.NoError(t, err)

	first, err := store.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	second, err := store.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWatchPendingFor_DeliversAndStopsOnCancel(t *testing.T) {
	store := NewMemoryRideStore()
	driverID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := store.WatchPendingFor(ctx, driverID)
	require.NoError(t, err)

	// initial snapshot is empty
	snap := <-ch
	assert.Empty(t, snap)

	r := newPendingRide(t, store, driverID)

	select {
	case snap = <-ch:
		require.Len(t, snap, 1)
		assert.Equal(t, r.ID, snap[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after ride creation")
	}

	cancel()
	for range ch {
		// drain until close; cancellation must close the channel
	}
}

func TestWatchPendingFor_ExcludesOtherDrivers(t *testing.T) {
	store := NewMemoryRideStore()
	driverID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := store.WatchPendingFor(ctx, driverID)
	require.NoError(t, err)
	<-ch // initial

	newPendingRide(t, store, uuid.New()) // someone else's ride

	select {
	case snap := <-ch:
		// a notification may fire, but the snapshot stays empty
		assert.Empty(t, snap)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchRide_ObservesTransitions(t *testing.T) {
	store := NewMemoryRideStore()
	driverID := uuid.New()
	r := newPendingRide(t, store, driverID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := store.WatchRide(ctx, r.ID)
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, ride.StatusPending, first.Status)

	_, err = store.AcceptIfPending(context.Background(), r.ID, driverID, "driver", time.Now())
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, ride.StatusAccepted, got.Status)
	case <-time.After(time.Second):
		t.Fatal("accept transition not observed")
	}
}

func TestMemoryUserStore_WalletDelta(t *testing.T) {
	store := NewMemoryUserStore()
	u := &user.User{ID: uuid.New(), Role: user.RoleRider, Name: "Asha", Wallet: 100}
	require.NoError(t, store.Create(context.Background(), u))

	// overdraft refused, balance untouched
	_, err := store.ApplyWalletDelta(context.Background(), u.ID, -150, user.Transaction{
		ID: uuid.New(), UserID: u.ID, Amount: 150, Kind: user.KindWithdrawal, CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, user.ErrInsufficientFunds)

	got, _ := store.GetByID(context.Background(), u.ID)
	assert.Equal(t, 100.0, got.Wallet)
	txns, _ := store.ListTransactions(context.Background(), u.ID, 0)
	assert.Empty(t, txns)

	balance, err := store.ApplyWalletDelta(context.Background(), u.ID, 50, user.Transaction{
		ID: uuid.New(), UserID: u.ID, Amount: 50, Kind: user.KindRecharge, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, 150.0, balance)

	txns, _ = store.ListTransactions(context.Background(), u.ID, 0)
	require.Len(t, txns, 1)
	assert.Equal(t, user.KindRecharge, txns[0].Kind)
}
