package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RejectionStore records which drivers have declined which rides. Per the
// lifecycle rules a rejection only filters the rejecting driver's own queue;
// it never mutates the shared ride record.
type RejectionStore interface {
	Add(ctx context.Context, rideID, driverID uuid.UUID) error
	Contains(ctx context.Context, rideID, driverID uuid.UUID) (bool, error)
}

// rejectionTTL keeps rejection sets from accumulating forever; well past any
// configured match window.
const rejectionTTL = 24 * time.Hour

// RedisRejections stores per-ride rejection sets in Redis, shared across
// service instances
type RedisRejections struct {
	redis *redis.Client
}

// NewRedisRejections creates a rejection store over the given Redis client
func NewRedisRejections(redisClient *redis.Client) *RedisRejections {
	return &RedisRejections{redis: redisClient}
}

func rejectionKey(rideID uuid.UUID) string {
	return fmt.Sprintf("ride:%s:rejections", rideID)
}

func (s *RedisRejections) Add(ctx context.Context, rideID, driverID uuid.UUID) error {
	key := rejectionKey(rideID)
	pipe := s.redis.TxPipeline()
	pipe.SAdd(ctx, key, driverID.String())
	pipe.Expire(ctx, key, rejectionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rejection: %w", err)
	}
	return nil
}

func (s *RedisRejections) Contains(ctx context.Context, rideID, driverID uuid.UUID) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, rejectionKey(rideID), driverID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check rejection: %w", err)
	}
	return ok, nil
}

// MemoryRejections is the in-process RejectionStore used in tests and
// single-instance runs
type MemoryRejections struct {
	mu       sync.RWMutex
	rejected map[uuid.UUID]map[uuid.UUID]bool
}

// NewMemoryRejections creates an empty in-memory rejection store
func NewMemoryRejections() *MemoryRejections {
	return &MemoryRejections{rejected: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (s *MemoryRejections) Add(ctx context.Context, rideID, driverID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejected[rideID] == nil {
		s.rejected[rideID] = make(map[uuid.UUID]bool)
	}
	s.rejected[rideID][driverID] = true
	return nil
}

func (s *MemoryRejections) Contains(ctx context.Context, rideID, driverID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rejected[rideID][driverID], nil
}
