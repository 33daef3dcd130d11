package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"learning-platform-core/internal/config"
	"learning-platform-core/internal/domain"
	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/repository"
	"learning-platform-core/internal/infra/logging"
	"learning-platform-core/internal/infra/metrics"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// AccessUseCase is the stateless policy layer every content-serving request
// passes through. It never mutates state; expiry is evaluated at read time.
type AccessUseCase interface {
	// CourseAccess admits or denies the caller for a whole course. On admit it
	// returns the enrollment for downstream use (progress display etc).
	CourseAccess(ctx context.Context, user *model.User, courseID string) (*model.Enrollment, error)
	// TopicAccess admits free topics unconditionally, even for unauthenticated
	// callers; paid topics delegate to course-level semantics. The enrollment
	// is nil on the free path.
	TopicAccess(ctx context.Context, user *model.User, courseID string, sectionIdx, topicIdx int) (*model.Enrollment, error)
	// EnrollmentEligibility reports whether the caller may open a course
	// purchase intent. nil means eligible.
	EnrollmentEligibility(ctx context.Context, user *model.User, courseID string) error
}

type accessUC struct {
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	billing     config.BillingConfig
	log         *zerolog.Logger
}

func NewAccessUseCase(
	courses repository.CourseRepository,
	enrollments repository.EnrollmentRepository,
	billing config.BillingConfig,
	logger *zerolog.Logger,
) *accessUC {
	return &accessUC{courses: courses, enrollments: enrollments, billing: billing, log: logger}
}

func (u *accessUC) CourseAccess(ctx context.Context, user *model.User, courseID string) (*model.Enrollment, error) {
	defer logging.TraceDuration(u.log, "AccessUC.CourseAccess")()
	// Anonymous callers are refused before any catalog lookup.
	if user == nil {
		metrics.IncAccessDecision("course", "deny")
		return nil, domain.ErrUnauthenticated
	}
	course, err := u.courses.FindByID(ctx, nil, courseID)
	if err != nil {
		metrics.IncAccessDecision("course", "not_found")
		return nil, err
	}
	e, err := u.courseAccess(ctx, user, course)
	if err != nil {
		metrics.IncAccessDecision("course", "deny")
		return nil, err
	}
	metrics.IncAccessDecision("course", "admit")
	return e, nil
}

func (u *accessUC) courseAccess(ctx context.Context, user *model.User, course *model.Course) (*model.Enrollment, error) {
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	if course.Status != model.CourseStatusPublished {
		return nil, domain.ErrCourseNotPublished
	}
	e, err := u.enrollments.FindByUserAndCourse(ctx, nil, user.ID, course.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.NotEnrolledError{
			CourseID: course.ID,
			Title:    course.Title,
			Price:    course.Price,
			Currency: course.Currency,
		}
	}
	if err != nil {
		return nil, err
	}

	switch e.EffectiveStatus(time.Now()) {
	case model.EnrollmentStatusActive:
		return e, nil
	case model.EnrollmentStatusExpired:
		return nil, domain.ErrEnrollmentExpired
	default:
		// cancelled/suspended rows grant nothing
		return nil, &domain.NotEnrolledError{
			CourseID: course.ID,
			Title:    course.Title,
			Price:    course.Price,
			Currency: course.Currency,
		}
	}
}

func (u *accessUC) TopicAccess(ctx context.Context, user *model.User, courseID string, sectionIdx, topicIdx int) (*model.Enrollment, error) {
	defer logging.TraceDuration(u.log, "AccessUC.TopicAccess")()
	course, err := u.courses.FindByID(ctx, nil, courseID)
	if err != nil {
		metrics.IncAccessDecision("topic", "not_found")
		return nil, err
	}
	// Unpublished courses are invisible through every surface; the free
	// carve-out applies only to published content.
	if course.Status != model.CourseStatusPublished {
		metrics.IncAccessDecision("topic", "deny")
		return nil, domain.ErrCourseNotPublished
	}
	topic, err := course.Topic(sectionIdx, topicIdx)
	if err != nil {
		metrics.IncAccessDecision("topic", "not_found")
		return nil, err
	}
	// A free topic never requires an enrollment check, for anyone.
	if topic.IsFree {
		metrics.IncAccessDecision("topic", "admit_free")
		return nil, nil
	}
	e, err := u.courseAccess(ctx, user, course)
	if err != nil {
		metrics.IncAccessDecision("topic", "deny")
		return nil, err
	}
	metrics.IncAccessDecision("topic", "admit")
	return e, nil
}

func (u *accessUC) EnrollmentEligibility(ctx context.Context, user *model.User, courseID string) error {
	defer logging.TraceDuration(u.log, "AccessUC.EnrollmentEligibility")()
	if user == nil {
		return domain.ErrUnauthenticated
	}
	course, err := u.courses.FindByID(ctx, nil, courseID)
	if err != nil {
		return err
	}
	if course.Status != model.CourseStatusPublished {
		return domain.ErrCourseNotPublished
	}
	// Complimentary roles skip the registration-fee gate entirely.
	if !user.Role.Complimentary() && !user.RegistrationFeePaid {
		return &domain.RegistrationFeeRequiredError{
			Amount:   u.billing.RegistrationFee,
			Currency: u.billing.Currency,
		}
	}
	e, err := u.enrollments.FindByUserAndCourse(ctx, nil, user.ID, courseID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	switch e.EffectiveStatus(time.Now()) {
	case model.EnrollmentStatusActive, model.EnrollmentStatusExpired:
		return domain.ErrAlreadyEnrolled
	}
	return nil
}
