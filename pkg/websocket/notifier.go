package websocket

import (
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
)

// RideNotifier pushes ride lifecycle events through the hub. It satisfies
// the matching coordinator's Notifier interface.
type RideNotifier struct {
	hub *Hub
}

// NewRideNotifier creates a notifier backed by the given hub
func NewRideNotifier(hub *Hub) *RideNotifier {
	return &RideNotifier{hub: hub}
}

// RideRequested offers a new pending ride to every driver it is visible to
func (n *RideNotifier) RideRequested(r *ride.Ride) {
	msg := Message{Type: "ride_request", Data: r}
	for _, driverID := range r.VisibleDriverIDs {
		n.hub.SendToUser(driverID.String(), msg)
	}
}

// RideAccepted tells the rider and any ride subscribers who won the match
func (n *RideNotifier) RideAccepted(r *ride.Ride) {
	msg := Message{Type: "ride_accepted", Data: r}
	n.hub.SendToUser(r.RiderID.String(), msg)
	n.hub.BroadcastToRide(r.ID.String(), msg)
}

// RideCancelled tells both parties the ride is over
func (n *RideNotifier) RideCancelled(r *ride.Ride) {
	msg := Message{Type: "ride_cancelled", Data: r}
	n.hub.SendToUser(r.RiderID.String(), msg)
	if r.DriverID != nil {
		n.hub.SendToUser(r.DriverID.String(), msg)
	}
	n.hub.BroadcastToRide(r.ID.String(), msg)
}
