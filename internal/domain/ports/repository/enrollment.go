package repository

import (
	"context"

	"learning-platform-core/internal/domain/model"
)

// EnrollmentRepository is the ledger port for enrollments. The store must
// enforce uniqueness on (user_id, course_id); Insert surfaces a violation as
// domain.ErrAlreadyExists so callers can fall back to the existing row.
type EnrollmentRepository interface {
	Insert(ctx context.Context, tx Tx, e *model.Enrollment) error
	Update(ctx context.Context, tx Tx, e *model.Enrollment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Enrollment, error)
	FindByUserAndCourse(ctx context.Context, tx Tx, userID, courseID string) (*model.Enrollment, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Enrollment, error)
}
