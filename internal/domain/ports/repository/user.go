package repository

import (
	"context"

	"learning-platform-core/internal/domain/model"
)

// UserRepository is the identity-provider port: the pipeline reads role and
// registration-fee state, and writes exactly one thing — the fee flag, cleared
// only by a verified registration payment.
type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	SetRegistrationFeePaid(ctx context.Context, tx Tx, userID, paymentID string) error
}
