package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/ridelink/ride-coordinator/internal/api/dto"
	"github.com/ridelink/ride-coordinator/internal/api/middleware"
	"github.com/ridelink/ride-coordinator/pkg/logger"
	"github.com/ridelink/ride-coordinator/pkg/websocket"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // tighten per deployment
	},
}

// HandleWebSocket handles GET /v1/ws. The caller authenticates through the
// surrounding middleware; drivers additionally get a live stream of the
// pending rides they are eligible for.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid caller identity"})
		return
	}
	role := c.GetString(middleware.ContextRole)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	client := websocket.NewClient(h.Hub, conn, userID.String(), role, h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	if role == websocket.RoleDriver {
		go h.streamEligibleRides(client, userID)
	}
}

// streamEligibleRides feeds eligible-ride snapshots to a driver connection
// until the connection goes away.
func (h *Handlers) streamEligibleRides(client *websocket.Client, driverID uuid.UUID) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-client.Done()
		cancel()
	}()

	ch, err := h.Coordinator.ObserveEligibleRides(ctx, driverID)
	if err != nil {
		h.Logger.Error("Failed to observe eligible rides",
			logger.String("driver_id", driverID.String()),
			logger.Err(err),
		)
		return
	}

	for snapshot := range ch {
		out := make([]dto.RideResponse, 0, len(snapshot))
		for _, r := range snapshot {
			out = append(out, dto.NewRideResponse(r))
		}
		client.SendMessage(websocket.Message{Type: "eligible_rides", Data: out})
	}
}
