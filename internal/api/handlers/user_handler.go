package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ridelink/ride-coordinator/internal/api/dto"
	"github.com/ridelink/ride-coordinator/internal/api/middleware"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
	"github.com/ridelink/ride-coordinator/pkg/logger"
)

// CreateUser handles POST /v1/users. Registration is open; the returned
// account ID is what the token endpoint signs.
func (h *Handlers) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	now := time.Now()
	u := &user.User{
		ID:          uuid.New(),
		Role:        user.Role(req.Role),
		Name:        req.Name,
		Email:       req.Email,
		Gender:      req.Gender,
		DOB:         req.DOB,
		VehicleType: req.VehicleType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Users.Create(c.Request.Context(), u); err != nil {
		h.respondError(c, err)
		return
	}

	h.Logger.Info("User registered",
		logger.String("user_id", u.ID.String()),
		logger.String("role", string(u.Role)),
	)
	c.JSON(http.StatusCreated, u)
}

// GetUser handles GET /v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	u, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// UpdateUser handles PUT /v1/users/:id. Callers may only edit themselves.
func (h *Handlers) UpdateUser(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if caller, ok := callerID(c); !ok || caller != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot edit another account"})
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	u, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Gender != "" {
		u.Gender = req.Gender
	}
	if req.DOB != "" {
		u.DOB = req.DOB
	}
	if req.VehicleType != "" {
		u.VehicleType = req.VehicleType
	}
	u.UpdatedAt = time.Now()

	if err := h.Users.Update(c.Request.Context(), u); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DeleteUser handles DELETE /v1/users/:id
func (h *Handlers) DeleteUser(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if caller, ok := callerID(c); !ok || caller != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot delete another account"})
		return
	}

	if err := h.Users.Delete(c.Request.Context(), userID); err != nil {
		h.respondError(c, err)
		return
	}

	// Drop any stale location so the driver stops receiving offers
	if err := h.Locations.Remove(c.Request.Context(), userID); err != nil {
		h.Logger.Warn("Failed to remove driver location", logger.Err(err))
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "user_id": userID})
}

// IssueToken handles POST /v1/auth/token. It signs an API token for an
// existing account.
func (h *Handlers) IssueToken(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	u, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, err := middleware.GenerateToken(h.JWT.Secret, u.ID, string(u.Role), h.JWT.Expiry)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.JWT.Expiry.Seconds()),
	})
}
