package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ridelink/ride-coordinator/internal/api/dto"
	"github.com/ridelink/ride-coordinator/internal/api/middleware"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/service/matching"
	"github.com/ridelink/ride-coordinator/internal/service/session"
	"github.com/ridelink/ride-coordinator/pkg/logger"
)

// CreateRide handles POST /v1/rides
func (h *Handlers) CreateRide(c *gin.Context) {
	riderID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	var req dto.CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	r, err := h.Coordinator.RequestRide(c.Request.Context(), matching.RideRequest{
		RiderID:       riderID,
		Pickup:        ride.Coord{Latitude: *req.PickupLatitude, Longitude: *req.PickupLongitude},
		Drop:          ride.Coord{Latitude: *req.DropLatitude, Longitude: *req.DropLongitude},
		RideType:      ride.Type(req.RideType),
		PaymentMethod: ride.PaymentMethod(req.PaymentMethod),
		DistanceKM:    req.DistanceKM,
		DurationSec:   req.DurationSec,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.NewRelic.RecordRideRequested(string(r.RideType), r.Price)

	resp := dto.NewRideResponse(r)
	resp.Pin = r.PIN // the rider hands this to the driver at pickup
	c.JSON(http.StatusCreated, resp)
}

// GetRide handles GET /v1/rides/:id
func (h *Handlers) GetRide(c *gin.Context) {
	rideID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ride id"})
		return
	}

	r, err := h.Rides.GetByID(c.Request.Context(), rideID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.NewRideResponse(r)
	if caller, ok := callerID(c); ok && caller == r.RiderID {
		resp.Pin = r.PIN
	}
	c.JSON(http.StatusOK, resp)
}

// ListRides handles GET /v1/rides and returns the caller's ride history
func (h *Handlers) ListRides(c *gin.Context) {
	riderID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	rides, err := h.Rides.ListByRider(c.Request.Context(), riderID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]dto.RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, dto.NewRideResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"rides": out})
}

// AwaitAssignment handles GET /v1/rides/:id/assignment. It blocks until a
// driver accepts or the match window runs out.
func (h *Handlers) AwaitAssignment(c *gin.Context) {
	rideID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ride id"})
		return
	}

	// The match window is far longer than the server's write timeout, so lift
	// the connection deadline for this request only. Otherwise the server
	// drops the connection mid-wait and the caller sees EOF instead of an
	// answer.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		h.Logger.Warn("Could not clear write deadline for assignment wait",
			logger.String("ride_id", rideID.String()),
			logger.Err(err),
		)
	}

	r, err := h.Coordinator.AwaitAssignment(c.Request.Context(), rideID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRideResponse(r))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *Handlers) CancelRide(c *gin.Context) {
	rideID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ride id"})
		return
	}
	actorID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	actor := session.ActorRider
	if c.GetString(middleware.ContextRole) == "driver" {
		actor = session.ActorDriver
	}

	r, err := h.Tracker.CancelRide(c.Request.Context(), rideID, actor, actorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Logger.Info("Ride cancelled",
		logger.String("ride_id", rideID.String()),
		logger.String("actor", string(actor)),
	)
	h.Notifier.RideCancelled(r)

	c.JSON(http.StatusOK, dto.NewRideResponse(r))
}
