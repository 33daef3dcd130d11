package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is the opaque transaction handle passed between use cases and
// repositories. Its concrete type is infra-defined (pgx.Tx for Postgres).
// Repositories must gracefully accept nil (non-transactional path).
type Tx interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via Tx. It keeps use-case interfaces free of
// storage-specific transaction types.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
