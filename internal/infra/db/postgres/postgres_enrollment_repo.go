package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"learning-platform-core/internal/domain"
	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/repository"
)

var _ repository.EnrollmentRepository = (*enrollmentRepo)(nil)

type enrollmentRepo struct{ pool *pgxpool.Pool }

func NewEnrollmentRepo(pool *pgxpool.Pool) *enrollmentRepo {
	return &enrollmentRepo{pool: pool}
}

const enrollmentColumns = `id, user_id, course_id, payment_id, enrolled_at, expires_at, status, progress, created_at, updated_at`

// Insert relies on the unique index on (user_id, course_id); a violation is
// surfaced as domain.ErrAlreadyExists so the use case can fall back to the
// existing row instead of failing a racing verification.
func (r *enrollmentRepo) Insert(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	progress, err := json.Marshal(e.Progress)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO enrollments (
  id, user_id, course_id, payment_id, enrolled_at, expires_at, status, progress, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	_, err = execSQL(ctx, r.pool, tx, q,
		e.ID, e.UserID, e.CourseID, e.PaymentID, e.EnrolledAt, e.ExpiresAt, e.Status, progress, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *enrollmentRepo) Update(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	progress, err := json.Marshal(e.Progress)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
UPDATE enrollments
SET payment_id=$2, enrolled_at=$3, expires_at=$4, status=$5, progress=$6, updated_at=$7
WHERE id=$1;`
	_, err = execSQL(ctx, r.pool, tx, q,
		e.ID, e.PaymentID, e.EnrolledAt, e.ExpiresAt, e.Status, progress, e.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *enrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanEnrollment(row)
}

func (r *enrollmentRepo) FindByUserAndCourse(ctx context.Context, tx repository.Tx, userID, courseID string) (*model.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id=$1 AND course_id=$2`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID, courseID)
	if err != nil {
		return nil, err
	}
	return scanEnrollment(row)
}

func (r *enrollmentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id=$1 ORDER BY enrolled_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	var progress []byte
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.PaymentID, &e.EnrolledAt, &e.ExpiresAt,
		&e.Status, &progress, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &e.Progress); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return e, nil
}
