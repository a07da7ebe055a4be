package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/pkg/logger"
)

// defaultPollInterval drives the watch queries; Postgres has no push
// primitive we rely on here, so live queries are polled.
const defaultPollInterval = 500 * time.Millisecond

// watchFailureBudget is how many consecutive poll failures a watch tolerates
// before it closes its channel and gives up.
const watchFailureBudget = 5

// PostgresRideStore is the durable ride.Repository. The conditional
// transitions are single UPDATE statements guarded on the current status, so
// the accept race is settled by the database row lock: exactly one concurrent
// accept matches the WHERE clause.
type PostgresRideStore struct {
	db           *sql.DB
	logger       *logger.Logger
	pollInterval time.Duration
}

// NewPostgresRideStore creates a ride store over the given connection pool
func NewPostgresRideStore(db *sql.DB, log *logger.Logger) *PostgresRideStore {
	return &PostgresRideStore{db: db, logger: log, pollInterval: defaultPollInterval}
}

// watchBackoff doubles the poll interval per consecutive failure, capped at
// eight intervals, so a struggling database is not hammered at full rate.
func (s *PostgresRideStore) watchBackoff(failures int) time.Duration {
	if failures == 0 {
		return s.pollInterval
	}
	wait := s.pollInterval << uint(failures)
	if max := 8 * s.pollInterval; wait > max {
		return max
	}
	return wait
}

const rideColumns = `id, rider_id, rider_name, driver_id, driver_name, status, ride_type,
	pickup_latitude, pickup_longitude, drop_latitude, drop_longitude,
	price, duration_min, payment_method, pin, visible_driver_ids,
	created_at, accepted_at, completed_at, cancelled_at`

func (s *PostgresRideStore) Create(ctx context.Context, r *ride.Ride) error {
	visible := make([]string, len(r.VisibleDriverIDs))
	for i, id := range r.VisibleDriverIDs {
		visible[i] = id.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rides (
			id, rider_id, rider_name, status, ride_type,
			pickup_latitude, pickup_longitude, drop_latitude, drop_longitude,
			price, duration_min, payment_method, pin, visible_driver_ids, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, r.ID, r.RiderID, r.RiderName, r.Status, r.RideType,
		r.Pickup.Latitude, r.Pickup.Longitude, r.Drop.Latitude, r.Drop.Longitude,
		r.Price, r.DurationMin, r.PaymentMethod, r.PIN, pq.Array(visible), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

func (s *PostgresRideStore) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	return scanRide(row)
}

func (s *PostgresRideStore) AcceptIfPending(ctx context.Context, rideID, driverID uuid.UUID, driverName string, at time.Time) (*ride.Ride, error) {
	// Eligibility first: a driver outside the visible set must see
	// ErrNotEligible even when the ride is no longer pending.
	current, err := s.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !current.VisibleTo(driverID) {
		return nil, ride.ErrNotEligible
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE rides
		SET status = $1, driver_id = $2, driver_name = $3, accepted_at = $4
		WHERE id = $5 AND status = $6
	`, ride.StatusAccepted, driverID, driverName, at, rideID, ride.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("accept ride: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("accept ride: %w", err)
	}
	if n == 0 {
		return nil, ride.ErrStaleState
	}
	return s.GetByID(ctx, rideID)
}

func (s *PostgresRideStore) CompleteIfAccepted(ctx context.Context, rideID, driverID uuid.UUID, at time.Time) (*ride.Ride, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rides
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4 AND driver_id = $5
	`, ride.StatusCompleted, at, rideID, ride.StatusAccepted, driverID)
	if err != nil {
		return nil, fmt.Errorf("complete ride: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("complete ride: %w", err)
	}
	if n == 0 {
		return nil, ride.ErrStaleState
	}
	return s.GetByID(ctx, rideID)
}

func (s *PostgresRideStore) CancelIfActive(ctx context.Context, rideID uuid.UUID, at time.Time) (*ride.Ride, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rides
		SET status = $1, cancelled_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`, ride.StatusCancelled, at, rideID, ride.StatusPending, ride.StatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("cancel ride: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("cancel ride: %w", err)
	}
	if n == 0 {
		return nil, ride.ErrStaleState
	}
	return s.GetByID(ctx, rideID)
}

func (s *PostgresRideStore) ListByRider(ctx context.Context, riderID uuid.UUID, limit int) ([]*ride.Ride, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE rider_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, riderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	var out []*ride.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresRideStore) WatchPendingFor(ctx context.Context, driverID uuid.UUID) (<-chan []*ride.Ride, error) {
	out := make(chan []*ride.Ride, 1)

	query := func() ([]*ride.Ride, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+rideColumns+` FROM rides
			WHERE status = $1 AND $2 = ANY(visible_driver_ids)
			ORDER BY created_at
		`, ride.StatusPending, driverID.String())
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var rs []*ride.Ride
		for rows.Next() {
			r, err := scanRide(rows)
			if err != nil {
				return nil, err
			}
			rs = append(rs, r)
		}
		return rs, rows.Err()
	}

	go func() {
		defer close(out)

		var lastKey string
		var failures int
		for {
			rs, err := query()
			if err != nil {
				failures++
				s.logger.Warn("Pending-ride watch poll failed",
					logger.String("driver_id", driverID.String()),
					logger.Int("consecutive_failures", failures),
					logger.Err(err),
				)
				if failures >= watchFailureBudget {
					s.logger.Error("Pending-ride watch giving up after repeated failures",
						logger.String("driver_id", driverID.String()),
						logger.Err(err),
					)
					return
				}
			} else {
				failures = 0
				key := snapshotKey(rs)
				if key != lastKey {
					lastKey = key
					select {
					case out <- rs:
					case <-ctx.Done():
						return
					}
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.watchBackoff(failures)):
			}
		}
	}()

	return out, nil
}

func (s *PostgresRideStore) WatchRide(ctx context.Context, rideID uuid.UUID) (<-chan *ride.Ride, error) {
	if _, err := s.GetByID(ctx, rideID); err != nil {
		return nil, err
	}

	out := make(chan *ride.Ride, 1)
	go func() {
		defer close(out)

		var last ride.Status
		var failures int
		for {
			r, err := s.GetByID(ctx, rideID)
			if err != nil {
				failures++
				s.logger.Warn("Ride watch poll failed",
					logger.String("ride_id", rideID.String()),
					logger.Int("consecutive_failures", failures),
					logger.Err(err),
				)
				if failures >= watchFailureBudget {
					s.logger.Error("Ride watch giving up after repeated failures",
						logger.String("ride_id", rideID.String()),
						logger.Err(err),
					)
					return
				}
			} else {
				failures = 0
				if r.Status != last {
					last = r.Status
					select {
					case out <- r:
					case <-ctx.Done():
						return
					}
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.watchBackoff(failures)):
			}
		}
	}()

	return out, nil
}

func snapshotKey(rs []*ride.Ride) string {
	key := ""
	for _, r := range rs {
		key += r.ID.String() + "|"
	}
	return key
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(row rowScanner) (*ride.Ride, error) {
	var (
		r           ride.Ride
		driverID    sql.NullString
		driverName  sql.NullString
		visible     pq.StringArray
		acceptedAt  sql.NullTime
		completedAt sql.NullTime
		cancelledAt sql.NullTime
	)

	err := row.Scan(
		&r.ID, &r.RiderID, &r.RiderName, &driverID, &driverName, &r.Status, &r.RideType,
		&r.Pickup.Latitude, &r.Pickup.Longitude, &r.Drop.Latitude, &r.Drop.Longitude,
		&r.Price, &r.DurationMin, &r.PaymentMethod, &r.PIN, &visible,
		&r.CreatedAt, &acceptedAt, &completedAt, &cancelledAt,
	)
	if err == sql.ErrNoRows {
		return nil, ride.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ride: %w", err)
	}

	if driverID.Valid {
		id, err := uuid.Parse(driverID.String)
		if err != nil {
			return nil, fmt.Errorf("scan ride: driver id: %w", err)
		}
		r.DriverID = &id
	}
	if driverName.Valid {
		r.DriverName = driverName.String
	}
	for _, v := range visible {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("scan ride: visible driver id: %w", err)
		}
		r.VisibleDriverIDs = append(r.VisibleDriverIDs, id)
	}
	if acceptedAt.Valid {
		r.AcceptedAt = &acceptedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if cancelledAt.Valid {
		r.CancelledAt = &cancelledAt.Time
	}
	return &r, nil
}
