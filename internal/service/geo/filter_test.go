package geo

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/stretchr/testify/assert"
)

// pointNorthOf returns a coordinate the given number of meters due north of
// origin. Along a meridian the haversine distance is exactly R*dLat, so the
// resulting distance is controlled to sub-millimeter precision.
func pointNorthOf(origin ride.Coord, meters float64) ride.Coord {
	dLat := meters / earthRadiusMeters * 180 / math.Pi
	return ride.Coord{Latitude: origin.Latitude + dLat, Longitude: origin.Longitude}
}

func TestFilterWithinRadius_BoundaryInclusive(t *testing.T) {
	origin := ride.Coord{Latitude: 22.5726, Longitude: 88.3639}

	inside := DriverPosition{DriverID: uuid.New(), Coord: pointNorthOf(origin, 2999)}
	outside := DriverPosition{DriverID: uuid.New(), Coord: pointNorthOf(origin, 3001)}

	got := FilterWithinRadius(origin, []DriverPosition{inside, outside}, 3000)

	assert.Len(t, got, 1)
	assert.Equal(t, inside.DriverID, got[0])
}

func TestFilterWithinRadius_ExactBoundary(t *testing.T) {
	origin := ride.Coord{Latitude: 12.9716, Longitude: 77.5946}
	onEdge := DriverPosition{DriverID: uuid.New(), Coord: pointNorthOf(origin, 3000)}

	// <= at the boundary, not <
	got := FilterWithinRadius(origin, []DriverPosition{onEdge}, 3000)
	assert.Len(t, got, 1)
}

func TestFilterWithinRadius_NoCandidates(t *testing.T) {
	origin := ride.Coord{Latitude: 22.5726, Longitude: 88.3639}

	got := FilterWithinRadius(origin, nil, 3000)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterWithinRadius_AllWithin(t *testing.T) {
	origin := ride.Coord{Latitude: 22.5726, Longitude: 88.3639}
	candidates := []DriverPosition{
		{DriverID: uuid.New(), Coord: pointNorthOf(origin, 100)},
		{DriverID: uuid.New(), Coord: pointNorthOf(origin, 1500)},
		{DriverID: uuid.New(), Coord: origin},
	}

	got := FilterWithinRadius(origin, candidates, 3000)
	assert.Len(t, got, 3)
}

func TestDistance_KnownCities(t *testing.T) {
	// Kolkata to Bangalore is roughly 1560 km great-circle
	kolkata := ride.Coord{Latitude: 22.5726, Longitude: 88.3639}
	bangalore := ride.Coord{Latitude: 12.9716, Longitude: 77.5946}

	d := Distance(kolkata, bangalore)
	assert.InDelta(t, 1560_000, d, 20_000)
}

func TestDistance_SamePoint(t *testing.T) {
	p := ride.Coord{Latitude: 22.5726, Longitude: 88.3639}
	assert.Equal(t, 0.0, Distance(p, p))
}
