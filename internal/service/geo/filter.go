package geo

import (
	"math"

	"github.com/google/uuid"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
)

const earthRadiusMeters = 6371 * 1000 // mean Earth radius

// DriverPosition pairs a driver identity with its last known location
type DriverPosition struct {
	DriverID uuid.UUID
	Coord    ride.Coord
}

// FilterWithinRadius returns the IDs of all candidates whose great-circle
// distance from origin is at most radiusMeters. The boundary is inclusive and
// the output carries no ordering guarantee. An empty candidate set yields an
// empty result, not an error.
func FilterWithinRadius(origin ride.Coord, candidates []DriverPosition, radiusMeters float64) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		if Distance(origin, c.Coord) <= radiusMeters {
			ids = append(ids, c.DriverID)
		}
	}
	return ids
}

// Distance computes the haversine distance between two points in meters
func Distance(a, b ride.Coord) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
