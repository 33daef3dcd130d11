package model

import (
	"math"
	"time"

	"github.com/google/uuid"

	"learning-platform-core/internal/domain"
)

type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusExpired   EnrollmentStatus = "expired"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
	EnrollmentStatusSuspended EnrollmentStatus = "suspended"
)

type CompletedTopic struct {
	Section     int       `json:"section"`
	Topic       int       `json:"topic"`
	CompletedAt time.Time `json:"completed_at"`
}

type LastAccessed struct {
	Section int       `json:"section"`
	Topic   int       `json:"topic"`
	At      time.Time `json:"at"`
}

// Progress is a derived sub-record; CompletionPercent is a cache over
// CompletedTopics, never an independent source of truth.
type Progress struct {
	CompletedTopics   []CompletedTopic `json:"completed_topics"`
	LastAccessed      *LastAccessed    `json:"last_accessed,omitempty"`
	CompletionPercent int              `json:"completion_percent"`
}

// Enrollment grants one user time-bounded access to one course. Exactly one
// row may exist per (user, course) over the pair's entire history; renewal
// updates the row in place.
type Enrollment struct {
	ID         string // UUID
	UserID     string
	CourseID   string
	PaymentID  string // completed payment that authorized this access window
	EnrolledAt time.Time
	ExpiresAt  time.Time
	Status     EnrollmentStatus
	Progress   Progress
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewEnrollment(id, userID, courseID, paymentID string, enrolledAt time.Time, duration AccessDuration) (*Enrollment, error) {
	if userID == "" || courseID == "" || paymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := duration.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Enrollment{
		ID:         id,
		UserID:     userID,
		CourseID:   courseID,
		PaymentID:  paymentID,
		EnrolledAt: enrolledAt,
		ExpiresAt:  duration.AddTo(enrolledAt),
		Status:     EnrollmentStatusActive,
		CreatedAt:  enrolledAt,
		UpdatedAt:  enrolledAt,
	}, nil
}

// EffectiveStatus is the read-time expiry check: a stored "active" whose
// ExpiresAt has passed is expired for gating purposes even before any
// write-back occurs. No timer ever mutates Status.
func (e *Enrollment) EffectiveStatus(now time.Time) EnrollmentStatus {
	if e.Status == EnrollmentStatusActive && now.After(e.ExpiresAt) {
		return EnrollmentStatusExpired
	}
	return e.Status
}

// Renew re-activates the row for a fresh payment: new window, status reset.
// Progress is deliberately kept so a returning learner resumes where they
// left off.
func (e *Enrollment) Renew(paymentID string, at time.Time, duration AccessDuration) error {
	if paymentID == "" {
		return domain.ErrInvalidArgument
	}
	if err := duration.Validate(); err != nil {
		return err
	}
	e.PaymentID = paymentID
	e.EnrolledAt = at
	e.ExpiresAt = duration.AddTo(at)
	e.Status = EnrollmentStatusActive
	e.UpdatedAt = at
	return nil
}

// MarkTopicCompleted records a completed (section, topic) pair. Marking an
// already-completed pair is a no-op for the set but still moves LastAccessed.
// Returns whether the pair was newly added.
func (e *Enrollment) MarkTopicCompleted(section, topic int, at time.Time) bool {
	e.Progress.LastAccessed = &LastAccessed{Section: section, Topic: topic, At: at}
	e.UpdatedAt = at
	for _, c := range e.Progress.CompletedTopics {
		if c.Section == section && c.Topic == topic {
			return false
		}
	}
	e.Progress.CompletedTopics = append(e.Progress.CompletedTopics, CompletedTopic{
		Section:     section,
		Topic:       topic,
		CompletedAt: at,
	})
	return true
}

// RecomputeCompletion refreshes the cached percentage against the course's
// current topic count, rounded to the nearest whole percent.
func (e *Enrollment) RecomputeCompletion(totalTopics int) {
	if totalTopics <= 0 {
		e.Progress.CompletionPercent = 0
		return
	}
	pct := 100 * float64(len(e.Progress.CompletedTopics)) / float64(totalTopics)
	e.Progress.CompletionPercent = int(math.Round(pct))
}
