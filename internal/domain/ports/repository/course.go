package repository

import (
	"context"

	"learning-platform-core/internal/domain/model"
)

// CourseRepository is the catalog-store port consumed by the pipeline.
type CourseRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Course) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Course, error)
	ListPublished(ctx context.Context, tx Tx) ([]*model.Course, error)
	// IncrementEnrollmentCount bumps the catalog display counter by one.
	// Called only on first-ever activation, never on renewal.
	IncrementEnrollmentCount(ctx context.Context, tx Tx, id string) error
}
