package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"learning-platform-core/internal/domain"
	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, course_id, amount, currency, type, status, provider, order_id, gateway_payment_id, signature, receipt, failure_reason, refund, created_at, updated_at, paid_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	refund, err := marshalRefund(p.Refund)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO payments (
  id, user_id, course_id, amount, currency, type, status, provider, order_id, gateway_payment_id, signature, receipt, failure_reason, refund, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
) ON CONFLICT (id) DO UPDATE SET
  status=$7, gateway_payment_id=$10, signature=$11, failure_reason=$13, refund=$14, updated_at=$16, paid_at=$17;`

	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.CourseID, p.Amount, p.Currency, p.Type, p.Status, p.Provider,
		p.OrderID, nullStr(p.GatewayPaymentID), nullStr(p.Signature), p.Receipt,
		nullStr(p.FailureReason), refund, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// UpdateStatusIfPending flips the row only when it is still pending: the
// RowsAffected result tells the caller whether it won the race.
func (r *paymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, next model.PaymentStatus, gatewayPaymentID, signature *string, paidAt *time.Time) (bool, error) {
	const q = `UPDATE payments
SET status=$2,
    gateway_payment_id=COALESCE($3, gateway_payment_id),
    signature=COALESCE($4, signature),
    paid_at=COALESCE($5, paid_at),
    updated_at=NOW()
WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, next, gatewayPaymentID, signature, paidAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var (
		gatewayPaymentID, signature, failureReason *string
		refund                                     []byte
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.CourseID, &p.Amount, &p.Currency, &p.Type, &p.Status,
		&p.Provider, &p.OrderID, &gatewayPaymentID, &signature, &p.Receipt, &failureReason,
		&refund, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.GatewayPaymentID = deref(gatewayPaymentID)
	p.Signature = deref(signature)
	p.FailureReason = deref(failureReason)
	if len(refund) > 0 {
		var rf model.Refund
		if err := json.Unmarshal(refund, &rf); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.Refund = &rf
	}
	return p, nil
}

func scanPayments(rows pgx.Rows) ([]*model.Payment, error) {
	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func marshalRefund(r *model.Refund) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
