package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
	"github.com/ridelink/ride-coordinator/internal/observability"
	"github.com/ridelink/ride-coordinator/internal/service/session"
	"github.com/ridelink/ride-coordinator/pkg/logger"
)

// Ledger applies credit and debit operations against user wallets. Every
// applied delta appends exactly one transaction record; debits that would
// overdraw the balance are refused whole.
type Ledger struct {
	users  user.Repository
	logger *logger.Logger
}

// NewLedger creates a wallet ledger over the user store
func NewLedger(users user.Repository, log *logger.Logger) *Ledger {
	return &Ledger{users: users, logger: log}
}

// ApplyDelta credits or debits amount for the given kind and returns the new
// balance. amount must be positive for both directions; the kind decides the
// sign. Debits beyond the current balance fail with ErrInsufficientFunds and
// leave balance and ledger untouched.
func (l *Ledger) ApplyDelta(ctx context.Context, userID uuid.UUID, amount float64, kind user.TransactionKind, note string) (float64, error) {
	if amount <= 0 {
		observability.WalletOps.WithLabelValues(string(kind), "invalid").Inc()
		return 0, user.ErrInvalidAmount
	}
	if !kind.IsValid() {
		return 0, fmt.Errorf("unknown transaction kind %q", kind)
	}

	delta := amount
	if kind.IsDebit() {
		delta = -amount
	}

	txn := user.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		Note:      note,
		CreatedAt: time.Now(),
	}

	balance, err := l.users.ApplyWalletDelta(ctx, userID, delta, txn)
	if err != nil {
		if err == user.ErrInsufficientFunds {
			observability.WalletOps.WithLabelValues(string(kind), "insufficient").Inc()
		}
		return balance, err
	}

	observability.WalletOps.WithLabelValues(string(kind), "ok").Inc()
	l.logger.Info("Wallet delta applied",
		logger.String("user_id", userID.String()),
		logger.String("kind", string(kind)),
		logger.Float64("amount", amount),
		logger.Float64("balance", balance),
	)
	return balance, nil
}

// Settle applies a completed ride's settlement. Cash rides settle outside
// the wallet and are a no-op here. UPI rides debit the rider and credit the
// driver; if the rider debit fails the driver credit is not attempted.
func (l *Ledger) Settle(ctx context.Context, req *session.SettlementRequest) error {
	if req.PaymentMethod != ride.PaymentUPI {
		l.logger.Info("Cash settlement, no wallet effect",
			logger.String("ride_id", req.RideID.String()),
		)
		return nil
	}

	note := fmt.Sprintf("ride %s", req.RideID)
	if _, err := l.ApplyDelta(ctx, req.RiderID, req.Amount, user.KindUPIPayment, note); err != nil {
		return fmt.Errorf("debit rider: %w", err)
	}
	if _, err := l.ApplyDelta(ctx, req.DriverID, req.Amount, user.KindFareSettlement, note); err != nil {
		// Rider already debited; surface loudly so the mismatch is resolved
		// by an operator rather than silently dropped.
		l.logger.Error("Driver credit failed after rider debit",
			logger.String("ride_id", req.RideID.String()),
			logger.String("driver_id", req.DriverID.String()),
			logger.Err(err),
		)
		return fmt.Errorf("credit driver: %w", err)
	}
	return nil
}

// Transactions returns the user's ledger entries, newest first
func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]user.Transaction, error) {
	return l.users.ListTransactions(ctx, userID, limit)
}
