package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two account types
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// TransactionKind classifies a wallet mutation
type TransactionKind string

const (
	KindRecharge       TransactionKind = "recharge"
	KindWithdrawal     TransactionKind = "withdrawal"
	KindUPIPayment     TransactionKind = "upi_payment"
	KindUPICredit      TransactionKind = "upi_credit"
	KindFareSettlement TransactionKind = "fare_settlement"
)

// IsDebit reports whether the kind reduces the wallet balance
func (k TransactionKind) IsDebit() bool {
	return k == KindWithdrawal || k == KindUPIPayment
}

// IsValid validates the transaction kind
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindRecharge, KindWithdrawal, KindUPIPayment, KindUPICredit, KindFareSettlement:
		return true
	}
	return false
}

// Transaction is one append-only wallet ledger entry. Every wallet mutation
// is paired with exactly one of these.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    float64         `json:"amount"`
	Kind      TransactionKind `json:"kind"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// User represents a rider or driver account with its wallet
type User struct {
	ID          uuid.UUID `json:"id"`
	Role        Role      `json:"role"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Gender      string    `json:"gender,omitempty"`
	DOB         string    `json:"dob,omitempty"`
	VehicleType string    `json:"vehicle_type,omitempty"`
	Wallet      float64   `json:"wallet"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientFunds = errors.New("wallet balance is insufficient")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Repository defines the interface for user and wallet data access.
// ApplyWalletDelta must apply the balance change and append the transaction
// record together or not at all, and must reject a delta that would take the
// balance below zero with ErrInsufficientFunds.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error

	ApplyWalletDelta(ctx context.Context, userID uuid.UUID, delta float64, txn Transaction) (float64, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
}
