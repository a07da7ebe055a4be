package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ridelink/ride-coordinator/internal/api/dto"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/pkg/logger"
)

// UpdateDriverLocation handles POST /v1/drivers/location
func (h *Handlers) UpdateDriverLocation(c *gin.Context) {
	driverID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	coord := ride.Coord{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := h.Locations.Update(c.Request.Context(), driverID, coord); err != nil {
		h.Logger.Error("Failed to update driver location", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update location"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"driver_id": driverID,
		"latitude":  coord.Latitude,
		"longitude": coord.Longitude,
		"timestamp": time.Now().UTC(),
	})
}

// AcceptRide handles POST /v1/drivers/accept
func (h *Handlers) AcceptRide(c *gin.Context) {
	driverID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	var req dto.AcceptRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	rideID, err := uuid.Parse(req.RideID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ride id"})
		return
	}

	r, err := h.Coordinator.AcceptRide(c.Request.Context(), driverID, rideID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRideResponse(r))
}

// RejectRide handles POST /v1/drivers/reject. Rejection only removes the
// ride from this driver's queue; the ride itself stays pending for others.
func (h *Handlers) RejectRide(c *gin.Context) {
	driverID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	var req dto.RejectRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	rideID, err := uuid.Parse(req.RideID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ride id"})
		return
	}

	if err := h.Coordinator.RejectRide(c.Request.Context(), driverID, rideID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "ride_id": rideID})
}

// PendingRides handles GET /v1/drivers/rides. It returns the current snapshot
// of pending rides visible to this driver, minus any they have rejected.
func (h *Handlers) PendingRides(c *gin.Context) {
	driverID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ch, err := h.Coordinator.ObserveEligibleRides(ctx, driverID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var snapshot []*ride.Ride
	select {
	case snapshot = <-ch:
	case <-ctx.Done():
	}

	out := make([]dto.RideResponse, 0, len(snapshot))
	for _, r := range snapshot {
		out = append(out, dto.NewRideResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"rides": out})
}
