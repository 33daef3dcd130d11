package repository

import (
	"context"
	"time"

	"learning-platform-core/internal/domain/model"
)

// PaymentRepository is the ledger port for payment records.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)

	// UpdateStatusIfPending is the compare-and-set that makes verification
	// idempotent under at-least-once callback delivery: it flips the status
	// only when the row is still pending and reports whether it won the race.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, next model.PaymentStatus, gatewayPaymentID, signature *string, paidAt *time.Time) (bool, error)

	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Payment, error)
	// ListPendingOlderThan supports reaping abandoned intents.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
