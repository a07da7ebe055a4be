package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ridelink/ride-coordinator/internal/api/dto"
	"github.com/ridelink/ride-coordinator/pkg/logger"
)

// VerifyPin handles POST /v1/rides/:id/verify-pin. The driver submits the
// PIN the rider read out at pickup.
func (h *Handlers) VerifyPin(c *gin.Context) {
	rideID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ride id"})
		return
	}

	var req dto.VerifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	verified, err := h.Tracker.VerifyPin(c.Request.Context(), rideID, req.Pin)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !verified {
		c.JSON(http.StatusUnauthorized, gin.H{"verified": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true, "ride_id": rideID})
}

// CompleteRide handles POST /v1/rides/:id/complete. Completion requires a
// prior successful PIN verification and settles UPI fares through the wallet
// ledger.
func (h *Handlers) CompleteRide(c *gin.Context) {
	rideID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ride id"})
		return
	}
	driverID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}

	settlement, err := h.Tracker.CompleteRide(c.Request.Context(), rideID, driverID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.Ledger.Settle(c.Request.Context(), settlement); err != nil {
		// The ride is already completed; surface the settlement failure
		// without rolling the ride back.
		h.Logger.Error("Fare settlement failed",
			logger.String("ride_id", rideID.String()),
			logger.Err(err),
		)
		h.respondError(c, err)
		return
	}

	r, err := h.Rides.GetByID(c.Request.Context(), rideID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.NewRelic.RecordRideCompleted(rideID.String(), r.Price, r.DurationMin)

	c.JSON(http.StatusOK, dto.NewRideResponse(r))
}
