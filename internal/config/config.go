package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	JWT      JWTConfig
	Matching MatchingConfig
	Pricing  PricingConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
	Host string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
	MaxIdleConns   int
}

type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type NewRelicConfig struct {
	LicenseKey string
	AppName    string
	Enabled    bool
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type MatchingConfig struct {
	RadiusMeters float64
	MatchWindow  time.Duration
}

// RateConfig holds the fare knobs for a single ride type
type RateConfig struct {
	BaseFare        float64
	PerKM           float64
	SpeedMultiplier float64
}

type PricingConfig struct {
	Bike     RateConfig
	CabNonAC RateConfig
	CabAC    RateConfig
	Parcel   RateConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvAsInt("DB_PORT", 5432),
			Name:           getEnv("DB_NAME", "ridelink"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 50),
			MaxIdleConns:   getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 10),
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 50),
			MinIdleConn: 10,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
		},
		NewRelic: NewRelicConfig{
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			AppName:    getEnv("NEW_RELIC_APP_NAME", "RideLink-Coordinator"),
			Enabled:    getEnvAsBool("NEW_RELIC_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your_jwt_secret_key_here"),
			Expiry: parseDuration(getEnv("JWT_EXPIRY", "24h"), 24*time.Hour),
		},
		Matching: MatchingConfig{
			RadiusMeters: getEnvAsFloat64("MATCHING_RADIUS_METERS", 3000),
			MatchWindow:  parseDuration(getEnv("MATCHING_WINDOW", "30m"), 30*time.Minute),
		},
		Pricing: PricingConfig{
			Bike: RateConfig{
				BaseFare:        getEnvAsFloat64("FARE_BIKE_BASE", 30),
				PerKM:           getEnvAsFloat64("FARE_BIKE_PER_KM", 8),
				SpeedMultiplier: getEnvAsFloat64("FARE_BIKE_SPEED_MULT", 0.5),
			},
			CabNonAC: RateConfig{
				BaseFare:        getEnvAsFloat64("FARE_CAB_NON_AC_BASE", 50),
				PerKM:           getEnvAsFloat64("FARE_CAB_NON_AC_PER_KM", 12),
				SpeedMultiplier: getEnvAsFloat64("FARE_CAB_NON_AC_SPEED_MULT", 1.2),
			},
			CabAC: RateConfig{
				BaseFare:        getEnvAsFloat64("FARE_CAB_AC_BASE", 60),
				PerKM:           getEnvAsFloat64("FARE_CAB_AC_PER_KM", 15),
				SpeedMultiplier: getEnvAsFloat64("FARE_CAB_AC_SPEED_MULT", 1.0),
			},
			Parcel: RateConfig{
				BaseFare:        getEnvAsFloat64("FARE_PARCEL_BASE", 30),
				PerKM:           getEnvAsFloat64("FARE_PARCEL_PER_KM", 8),
				SpeedMultiplier: getEnvAsFloat64("FARE_PARCEL_SPEED_MULT", 0.5),
			},
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.Matching.RadiusMeters <= 0 {
		return fmt.Errorf("MATCHING_RADIUS_METERS must be positive")
	}
	if c.Matching.MatchWindow <= 0 {
		return fmt.Errorf("MATCHING_WINDOW must be positive")
	}
	if c.JWT.Secret == "your_jwt_secret_key_here" && c.Server.Env == "production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
