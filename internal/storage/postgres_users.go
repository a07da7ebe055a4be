package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
)

// PostgresUserStore is the durable user.Repository. Wallet deltas are applied
// with a conditional UPDATE that enforces the non-negative balance, and the
// ledger row is appended in the same transaction.
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a user store over the given connection pool
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) Create(ctx context.Context, u *user.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, role, name, email, gender, dob, vehicle_type, wallet, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, u.ID, u.Role, u.Name, u.Email, u.Gender, u.DOB, u.VehicleType, u.Wallet, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, role, name, email, gender, dob, vehicle_type, wallet, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Role, &u.Name, &u.Email, &u.Gender, &u.DOB, &u.VehicleType, &u.Wallet, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresUserStore) Update(ctx context.Context, u *user.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $1, email = $2, gender = $3, dob = $4, vehicle_type = $5, updated_at = $6
		WHERE id = $7
	`, u.Name, u.Email, u.Gender, u.DOB, u.VehicleType, time.Now(), u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// Delete removes the account. Rides referencing the user stay for history.
func (s *PostgresUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (s *PostgresUserStore) ApplyWalletDelta(ctx context.Context, userID uuid.UUID, delta float64, txn user.Transaction) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("wallet delta: begin: %w", err)
	}
	defer tx.Rollback()

	var newBalance float64
	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET wallet = wallet + $1, updated_at = $2
		WHERE id = $3 AND wallet + $1 >= 0
		RETURNING wallet
	`, delta, time.Now(), userID).Scan(&newBalance)
	if err == sql.ErrNoRows {
		// Either the user is gone or the balance check failed; tell them apart
		// so the caller surfaces the right outcome.
		var exists bool
		if checkErr := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); checkErr == nil && !exists {
			return 0, user.ErrUserNotFound
		}
		return 0, user.ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("wallet delta: update: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, user_id, amount, kind, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, txn.ID, txn.UserID, txn.Amount, txn.Kind, txn.Note, txn.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("wallet delta: ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("wallet delta: commit: %w", err)
	}
	return newBalance, nil
}

func (s *PostgresUserStore) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]user.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, kind, note, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []user.Transaction
	for rows.Next() {
		var t user.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Kind, &t.Note, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
