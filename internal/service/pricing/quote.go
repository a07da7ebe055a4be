package pricing

import (
	"math"

	"github.com/ridelink/ride-coordinator/internal/domain/ride"
)

// Rates holds the fare parameters for one ride type
type Rates struct {
	BaseFare        float64
	PerKM           float64
	SpeedMultiplier float64
}

// Config maps each ride type to its rates
type Config struct {
	Rates map[ride.Type]Rates
}

// DefaultConfig returns the reference fare table: bikes and parcels are the
// cheapest, AC cabs the most expensive.
func DefaultConfig() Config {
	return Config{Rates: map[ride.Type]Rates{
		ride.TypeBike:     {BaseFare: 30, PerKM: 8, SpeedMultiplier: 0.5},
		ride.TypeCabNonAC: {BaseFare: 50, PerKM: 12, SpeedMultiplier: 1.2},
		ride.TypeCabAC:    {BaseFare: 60, PerKM: 15, SpeedMultiplier: 1.0},
		ride.TypeParcel:   {BaseFare: 30, PerKM: 8, SpeedMultiplier: 0.5},
	}}
}

// Quote is a deterministic fare estimate fixed at ride creation
type Quote struct {
	Price       float64 `json:"price"`
	DurationMin int     `json:"duration_min"`
	DistanceKM  float64 `json:"distance_km"`
}

const (
	fallbackDistanceKM  = 2.0
	fallbackDurationSec = 300.0
)

// Service computes fare quotes from a fixed rate table
type Service struct {
	config Config
}

// NewService creates a new pricing service
func NewService(config Config) *Service {
	if config.Rates == nil {
		config = DefaultConfig()
	}
	return &Service{config: config}
}

// Estimate quotes a ride of the given type over the measured distance and
// duration. A zero or unmeasurable distance falls back to 2 km / 300 s
// rather than failing. Price is rounded to the nearest whole unit.
func (s *Service) Estimate(rideType ride.Type, distanceKM, durationSec float64) Quote {
	if distanceKM <= 0 || math.IsNaN(distanceKM) {
		distanceKM = fallbackDistanceKM
		durationSec = fallbackDurationSec
	}

	rates, ok := s.config.Rates[rideType]
	if !ok {
		rates = s.config.Rates[ride.TypeBike]
	}

	price := math.Round(rates.BaseFare + rates.PerKM*distanceKM)
	durationMin := int(math.Ceil(durationSec * rates.SpeedMultiplier / 60))

	return Quote{
		Price:       price,
		DurationMin: durationMin,
		DistanceKM:  distanceKM,
	}
}
