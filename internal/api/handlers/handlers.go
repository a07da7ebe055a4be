package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ridelink/ride-coordinator/internal/config"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
	"github.com/ridelink/ride-coordinator/internal/service/matching"
	"github.com/ridelink/ride-coordinator/internal/service/session"
	"github.com/ridelink/ride-coordinator/internal/service/wallet"
	"github.com/ridelink/ride-coordinator/pkg/logger"
	"github.com/ridelink/ride-coordinator/pkg/monitoring"
	"github.com/ridelink/ride-coordinator/pkg/websocket"
)

// LocationStore is the write side of the driver position index
type LocationStore interface {
	Update(ctx context.Context, driverID uuid.UUID, coord ride.Coord) error
	Remove(ctx context.Context, driverID uuid.UUID) error
}

// Handlers holds all handler dependencies
type Handlers struct {
	Rides       ride.Repository
	Users       user.Repository
	Coordinator *matching.Coordinator
	Tracker     *session.Tracker
	Ledger      *wallet.Ledger
	Locations   LocationStore
	Hub         *websocket.Hub
	Notifier    *websocket.RideNotifier
	Logger      *logger.Logger
	NewRelic    *monitoring.NewRelicApp
	JWT         config.JWTConfig
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	rides ride.Repository,
	users user.Repository,
	coordinator *matching.Coordinator,
	tracker *session.Tracker,
	ledger *wallet.Ledger,
	locations LocationStore,
	hub *websocket.Hub,
	notifier *websocket.RideNotifier,
	log *logger.Logger,
	nrApp *monitoring.NewRelicApp,
	jwtCfg config.JWTConfig,
) *Handlers {
	return &Handlers{
		Rides:       rides,
		Users:       users,
		Coordinator: coordinator,
		Tracker:     tracker,
		Ledger:      ledger,
		Locations:   locations,
		Hub:         hub,
		Notifier:    notifier,
		Logger:      log,
		NewRelic:    nrApp,
		JWT:         jwtCfg,
	}
}
