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

var _ repository.CourseRepository = (*courseRepo)(nil)

type courseRepo struct{ pool *pgxpool.Pool }

func NewCourseRepo(pool *pgxpool.Pool) *courseRepo {
	return &courseRepo{pool: pool}
}

const courseColumns = `id, title, description, price, currency, status, duration_count, duration_unit, sections, enrollment_count, created_at, updated_at`

func (r *courseRepo) Save(ctx context.Context, tx repository.Tx, c *model.Course) error {
	sections, err := json.Marshal(c.Sections)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO courses (
  id, title, description, price, currency, status, duration_count, duration_unit, sections, enrollment_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  title=$2, description=$3, price=$4, currency=$5, status=$6, duration_count=$7, duration_unit=$8, sections=$9, updated_at=$12;`
	_, err = execSQL(ctx, r.pool, tx, q,
		c.ID, c.Title, c.Description, c.Price, c.Currency, c.Status,
		c.AccessDuration.Count, c.AccessDuration.Unit, sections, c.EnrollmentCount, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *courseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanCourse(row)
}

func (r *courseRepo) ListPublished(ctx context.Context, tx repository.Tx) ([]*model.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses WHERE status='published' ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func (r *courseRepo) IncrementEnrollmentCount(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE courses SET enrollment_count = enrollment_count + 1, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCourse(row pgx.Row) (*model.Course, error) {
	c := &model.Course{}
	var sections []byte
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Price, &c.Currency, &c.Status,
		&c.AccessDuration.Count, &c.AccessDuration.Unit, &sections, &c.EnrollmentCount,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &c.Sections); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return c, nil
}
