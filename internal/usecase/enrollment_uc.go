package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"learning-platform-core/internal/domain"
	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/repository"
	"learning-platform-core/internal/infra/logging"
	"learning-platform-core/internal/infra/metrics"
)

// Compile-time check
var _ EnrollmentUseCase = (*enrollmentUC)(nil)

// EnrollmentUseCase derives enrollments from completed course payments and
// tracks learner progress.
type EnrollmentUseCase interface {
	// Materialize turns a completed course payment into an active or renewed
	// enrollment. It runs inside the caller's transaction (tx may be nil) and
	// is idempotent: re-materializing for the same payment is a no-op.
	Materialize(ctx context.Context, tx repository.Tx, payment *model.Payment) (*model.Enrollment, error)
	// RecordProgress marks a (section, topic) pair completed and refreshes the
	// cached completion percentage against the course's current topic count.
	// Enrollments owned by other users read as not found.
	RecordProgress(ctx context.Context, userID, enrollmentID string, sectionIdx, topicIdx int) (*model.Enrollment, error)
	GetByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Enrollment, error)
}

type enrollmentUC struct {
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
	log         *zerolog.Logger
}

func NewEnrollmentUseCase(
	enrollments repository.EnrollmentRepository,
	courses repository.CourseRepository,
	logger *zerolog.Logger,
) *enrollmentUC {
	return &enrollmentUC{enrollments: enrollments, courses: courses, log: logger}
}

func (u *enrollmentUC) Materialize(ctx context.Context, tx repository.Tx, payment *model.Payment) (*model.Enrollment, error) {
	defer logging.TraceDuration(u.log, "EnrollmentUC.Materialize")()
	if payment == nil || payment.CourseID == nil {
		return nil, domain.ErrInvalidArgument
	}
	if payment.Status != model.PaymentStatusCompleted || payment.Type != model.PaymentTypeCourse {
		return nil, domain.ErrInvalidArgument
	}
	courseID := *payment.CourseID

	course, err := u.courses.FindByID(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	existing, err := u.enrollments.FindByUserAndCourse(ctx, tx, payment.UserID, courseID)
	switch {
	case err == nil:
		return u.reuse(ctx, tx, existing, payment, course, now)
	case errors.Is(err, domain.ErrNotFound):
		// first-ever activation for this (user, course)
	default:
		return nil, err
	}

	e, err := model.NewEnrollment("", payment.UserID, courseID, payment.ID, now, course.AccessDuration)
	if err != nil {
		return nil, err
	}
	if err := u.enrollments.Insert(ctx, tx, e); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost a race with a concurrent verification: the row exists now,
			// re-read and fall back to the single-row semantics.
			existing, ferr := u.enrollments.FindByUserAndCourse(ctx, tx, payment.UserID, courseID)
			if ferr != nil {
				return nil, ferr
			}
			return u.reuse(ctx, tx, existing, payment, course, now)
		}
		return nil, err
	}

	// Counter moves only on first-ever activation, never on renewal.
	if err := u.courses.IncrementEnrollmentCount(ctx, tx, courseID); err != nil {
		return nil, err
	}
	metrics.IncEnrollmentMaterialization("created")
	u.log.Info().
		Str("enrollment_id", e.ID).
		Str("user_id", e.UserID).
		Str("course_id", e.CourseID).
		Time("expires_at", e.ExpiresAt).
		Msg("enrollment created")
	return e, nil
}

// reuse applies the single-row-per-pair semantics to an existing enrollment:
// same payment is a no-op, active is a logic error, anything else renews in
// place.
func (u *enrollmentUC) reuse(ctx context.Context, tx repository.Tx, existing *model.Enrollment, payment *model.Payment, course *model.Course, now time.Time) (*model.Enrollment, error) {
	if existing.PaymentID == payment.ID {
		metrics.IncEnrollmentMaterialization("noop")
		return existing, nil
	}
	if existing.EffectiveStatus(now) == model.EnrollmentStatusActive {
		return nil, domain.ErrAlreadyActive
	}
	if err := existing.Renew(payment.ID, now, course.AccessDuration); err != nil {
		return nil, err
	}
	if err := u.enrollments.Update(ctx, tx, existing); err != nil {
		return nil, err
	}
	metrics.IncEnrollmentMaterialization("renewed")
	u.log.Info().
		Str("enrollment_id", existing.ID).
		Str("user_id", existing.UserID).
		Str("course_id", existing.CourseID).
		Time("expires_at", existing.ExpiresAt).
		Msg("enrollment renewed")
	return existing, nil
}

func (u *enrollmentUC) RecordProgress(ctx context.Context, userID, enrollmentID string, sectionIdx, topicIdx int) (*model.Enrollment, error) {
	defer logging.TraceDuration(u.log, "EnrollmentUC.RecordProgress")()
	if userID == "" || enrollmentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	e, err := u.enrollments.FindByID(ctx, nil, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, domain.ErrNotFound
	}
	course, err := u.courses.FindByID(ctx, nil, e.CourseID)
	if err != nil {
		return nil, err
	}
	if _, err := course.Topic(sectionIdx, topicIdx); err != nil {
		return nil, err
	}

	e.MarkTopicCompleted(sectionIdx, topicIdx, time.Now())
	e.RecomputeCompletion(course.TotalTopics())
	if err := u.enrollments.Update(ctx, nil, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (u *enrollmentUC) GetByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	if userID == "" || courseID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.enrollments.FindByUserAndCourse(ctx, nil, userID, courseID)
}

func (u *enrollmentUC) ListByUser(ctx context.Context, userID string) ([]*model.Enrollment, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.enrollments.ListByUser(ctx, nil, userID)
}
