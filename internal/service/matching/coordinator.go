package matching

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
	"github.com/ridelink/ride-coordinator/internal/observability"
	"github.com/ridelink/ride-coordinator/internal/service/geo"
	"github.com/ridelink/ride-coordinator/internal/service/location"
	"github.com/ridelink/ride-coordinator/internal/service/pricing"
	"github.com/ridelink/ride-coordinator/pkg/logger"
)

// nominalSpeedKMH approximates trip duration when the caller has no measured
// route duration
const nominalSpeedKMH = 30.0

// Config holds matching configuration
type Config struct {
	// RadiusMeters is the eligibility radius evaluated at ride creation
	RadiusMeters float64
	// MatchWindow bounds how long AwaitAssignment waits before reporting
	// that no driver was found
	MatchWindow time.Duration
}

// Notifier receives lifecycle events for real-time delivery. Implementations
// must not block.
type Notifier interface {
	RideRequested(r *ride.Ride)
	RideAccepted(r *ride.Ride)
	RideCancelled(r *ride.Ride)
}

// Coordinator publishes new ride requests to eligible drivers and resolves
// the first accept into a binding assignment
type Coordinator struct {
	rides      ride.Repository
	users      user.Repository
	locations  location.Source
	pricing    *pricing.Service
	rejections RejectionStore
	notifier   Notifier
	logger     *logger.Logger
	config     Config

	mu        sync.Mutex
	observers map[uuid.UUID][]chan struct{}
}

// NewCoordinator creates a matching coordinator. notifier may be nil.
func NewCoordinator(rides ride.Repository, users user.Repository, locations location.Source,
	pricingSvc *pricing.Service, rejections RejectionStore, notifier Notifier,
	log *logger.Logger, config Config) *Coordinator {
	if config.RadiusMeters <= 0 {
		config.RadiusMeters = 3000
	}
	if config.MatchWindow <= 0 {
		config.MatchWindow = 30 * time.Minute
	}
	return &Coordinator{
		rides:      rides,
		users:      users,
		locations:  locations,
		pricing:    pricingSvc,
		rejections: rejections,
		notifier:   notifier,
		logger:     log,
		config:     config,
		observers:  make(map[uuid.UUID][]chan struct{}),
	}
}

// addObserver registers a recheck signal for one ObserveEligibleRides stream
func (c *Coordinator) addObserver(driverID uuid.UUID) chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.observers[driverID] = append(c.observers[driverID], ch)
	c.mu.Unlock()
	return ch
}

func (c *Coordinator) removeObserver(driverID uuid.UUID, ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obs := c.observers[driverID]
	for i := range obs {
		if obs[i] == ch {
			c.observers[driverID] = append(obs[:i], obs[i+1:]...)
			break
		}
	}
	if len(c.observers[driverID]) == 0 {
		delete(c.observers, driverID)
	}
}

// signalObservers nudges every active stream for driverID to re-filter its
// last snapshot. Non-blocking; a stream that is already signalled is skipped.
func (c *Coordinator) signalObservers(driverID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.observers[driverID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// RideRequest carries everything needed to create a pending ride.
// DistanceKM/DurationSec are the measured route values when the caller has
// them; left at zero they are estimated from the pickup/drop great-circle
// distance.
type RideRequest struct {
	RiderID       uuid.UUID
	Pickup        ride.Coord
	Drop          ride.Coord
	RideType      ride.Type
	PaymentMethod ride.PaymentMethod
	DistanceKM    float64
	DurationSec   float64
}

// RequestRide creates a pending ride with a fixed price quote, a fresh
// 4-digit PIN and the visible-driver set computed once against all currently
// known driver positions. An empty visible set is not an error; the ride
// simply receives no candidates.
func (c *Coordinator) RequestRide(ctx context.Context, req RideRequest) (*ride.Ride, error) {
	rider, err := c.users.GetByID(ctx, req.RiderID)
	if err != nil {
		return nil, err
	}

	distanceKM := req.DistanceKM
	durationSec := req.DurationSec
	if distanceKM <= 0 {
		distanceKM = geo.Distance(req.Pickup, req.Drop) / 1000
		durationSec = distanceKM / nominalSpeedKMH * 3600
	}
	quote := c.pricing.Estimate(req.RideType, distanceKM, durationSec)

	candidates, err := c.locations.Near(ctx, req.Pickup)
	if err != nil {
		return nil, fmt.Errorf("load driver positions: %w", err)
	}
	visible := geo.FilterWithinRadius(req.Pickup, candidates, c.config.RadiusMeters)

	r := &ride.Ride{
		ID:               uuid.New(),
		RiderID:          rider.ID,
		RiderName:        rider.Name,
		Status:           ride.StatusPending,
		RideType:         req.RideType,
		Pickup:           req.Pickup,
		Drop:             req.Drop,
		Price:            quote.Price,
		DurationMin:      quote.DurationMin,
		PaymentMethod:    req.PaymentMethod,
		PIN:              generatePIN(),
		VisibleDriverIDs: visible,
		CreatedAt:        time.Now(),
	}

	if err := c.rides.Create(ctx, r); err != nil {
		return nil, err
	}

	observability.RidesRequested.Inc()
	c.logger.Info("Ride requested",
		logger.String("ride_id", r.ID.String()),
		logger.String("rider_id", rider.ID.String()),
		logger.String("ride_type", string(r.RideType)),
		logger.Float64("price", r.Price),
		logger.Int("visible_drivers", len(visible)),
	)
	if len(visible) == 0 {
		c.logger.Warn("No drivers within matching radius",
			logger.String("ride_id", r.ID.String()),
			logger.Float64("radius_m", c.config.RadiusMeters),
		)
	}

	if c.notifier != nil {
		c.notifier.RideRequested(r)
	}
	return r, nil
}

// ObserveEligibleRides is a live subscription: snapshots of all pending rides
// visible to driverID, minus the ones this driver has rejected, re-delivered
// whenever the underlying set changes or this driver rejects a ride. Cancel
// ctx to stop; the channel closes and nothing further is delivered.
func (c *Coordinator) ObserveEligibleRides(ctx context.Context, driverID uuid.UUID) (<-chan []*ride.Ride, error) {
	in, err := c.rides.WatchPendingFor(ctx, driverID)
	if err != nil {
		return nil, err
	}
	recheck := c.addObserver(driverID)

	out := make(chan []*ride.Ride, 1)
	go func() {
		defer close(out)
		defer c.removeObserver(driverID, recheck)

		var last []*ride.Ride
		seeded := false
		for {
			select {
			case snapshot, ok := <-in:
				if !ok {
					return
				}
				last = snapshot
				seeded = true
			case <-recheck:
				// a rejection landed; re-filter the snapshot we already hold
				if !seeded {
					continue
				}
			case <-ctx.Done():
				return
			}

			filtered := make([]*ride.Ride, 0, len(last))
			for _, r := range last {
				rejected, err := c.rejections.Contains(ctx, r.ID, driverID)
				if err != nil {
					c.logger.Warn("Rejection lookup failed, keeping ride visible",
						logger.String("ride_id", r.ID.String()),
						logger.Err(err),
					)
				}
				if !rejected {
					filtered = append(filtered, r)
				}
			}
			select {
			case out <- filtered:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// AcceptRide resolves the accept race: exactly one concurrent caller wins,
// the rest observe ErrStaleState. A driver outside the visible set gets
// ErrNotEligible.
func (c *Coordinator) AcceptRide(ctx context.Context, driverID, rideID uuid.UUID) (*ride.Ride, error) {
	driver, err := c.users.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	accepted, err := c.rides.AcceptIfPending(ctx, rideID, driverID, driver.Name, time.Now())
	if err != nil {
		if err == ride.ErrStaleState {
			observability.AcceptConflicts.Inc()
			c.logger.Info("Accept lost the race",
				logger.String("ride_id", rideID.String()),
				logger.String("driver_id", driverID.String()),
			)
		}
		return nil, err
	}

	observability.RidesAccepted.Inc()
	if accepted.AcceptedAt != nil {
		observability.MatchLatency.Observe(accepted.AcceptedAt.Sub(accepted.CreatedAt).Seconds())
	}
	c.logger.Info("Ride accepted",
		logger.String("ride_id", rideID.String()),
		logger.String("driver_id", driverID.String()),
	)

	if c.notifier != nil {
		c.notifier.RideAccepted(accepted)
	}
	return accepted, nil
}

// RejectRide marks the ride rejected for this driver only. Other eligible
// drivers can still accept; the shared ride record does not change.
func (c *Coordinator) RejectRide(ctx context.Context, driverID, rideID uuid.UUID) error {
	r, err := c.rides.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if !r.VisibleTo(driverID) {
		return ride.ErrNotEligible
	}
	if err := c.rejections.Add(ctx, rideID, driverID); err != nil {
		return err
	}
	c.signalObservers(driverID)
	c.logger.Info("Ride rejected by driver",
		logger.String("ride_id", rideID.String()),
		logger.String("driver_id", driverID.String()),
	)
	return nil
}

// AwaitAssignment blocks until the ride leaves pending or the match window
// expires. On expiry it reports ErrNoDriverFound and leaves the ride pending
// for the rider to retry or cancel.
func (c *Coordinator) AwaitAssignment(ctx context.Context, rideID uuid.UUID) (*ride.Ride, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.MatchWindow)
	defer cancel()

	updates, err := c.rides.WatchRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case r, ok := <-updates:
			if !ok {
				observability.MatchTimeouts.Inc()
				return nil, ride.ErrNoDriverFound
			}
			if r.Status != ride.StatusPending {
				return r, nil
			}
		case <-ctx.Done():
			observability.MatchTimeouts.Inc()
			c.logger.Warn("Match window expired",
				logger.String("ride_id", rideID.String()),
			)
			return nil, ride.ErrNoDriverFound
		}
	}
}

// generatePIN draws a 4-digit pickup PIN uniformly from 1000-9999
func generatePIN() string {
	return fmt.Sprintf("%04d", 1000+rand.Intn(9000))
}
