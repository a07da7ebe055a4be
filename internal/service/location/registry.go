package location

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/service/geo"
	"github.com/ridelink/ride-coordinator/pkg/logger"
)

const driversGeoKey = "drivers:locations"

// coarseRadiusKM bounds the GEOSEARCH pre-filter; wide enough that the exact
// haversine filter downstream is the one that decides eligibility.
const coarseRadiusKM = 50.0

// Source provides the candidate driver positions the matching radius is
// evaluated against
type Source interface {
	Near(ctx context.Context, origin ride.Coord) ([]geo.DriverPosition, error)
}

// Registry keeps each driver's last reported position in a Redis geo set
type Registry struct {
	redis  *redis.Client
	logger *logger.Logger
}

// NewRegistry creates a registry over the given Redis client
func NewRegistry(redisClient *redis.Client, log *logger.Logger) *Registry {
	return &Registry{redis: redisClient, logger: log}
}

// Update records the driver's current position
func (r *Registry) Update(ctx context.Context, driverID uuid.UUID, coord ride.Coord) error {
	err := r.redis.GeoAdd(ctx, driversGeoKey, &redis.GeoLocation{
		Name:      driverID.String(),
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
	}).Err()
	if err != nil {
		return fmt.Errorf("update driver location: %w", err)
	}
	return nil
}

// Remove drops the driver from the registry, e.g. when going offline
func (r *Registry) Remove(ctx context.Context, driverID uuid.UUID) error {
	if err := r.redis.ZRem(ctx, driversGeoKey, driverID.String()).Err(); err != nil {
		return fmt.Errorf("remove driver location: %w", err)
	}
	return nil
}

// Near returns the known driver positions in the coarse neighbourhood of
// origin. Entries whose member name is not a UUID are skipped.
func (r *Registry) Near(ctx context.Context, origin ride.Coord) ([]geo.DriverPosition, error) {
	locations, err := r.redis.GeoSearchLocation(ctx, driversGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   origin.Latitude,
			Longitude:  origin.Longitude,
			Radius:     coarseRadiusKM,
			RadiusUnit: "km",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("search driver locations: %w", err)
	}

	positions := make([]geo.DriverPosition, 0, len(locations))
	for _, loc := range locations {
		id, err := uuid.Parse(loc.Name)
		if err != nil {
			r.logger.Warn("Skipping malformed driver id in geo set",
				logger.String("member", loc.Name),
			)
			continue
		}
		positions = append(positions, geo.DriverPosition{
			DriverID: id,
			Coord:    ride.Coord{Latitude: loc.Latitude, Longitude: loc.Longitude},
		})
	}
	return positions, nil
}
