package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"learning-platform-core/internal/domain"
)

type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

type DurationUnit string

const (
	DurationUnitYear  DurationUnit = "year"
	DurationUnitMonth DurationUnit = "month"
	DurationUnitDay   DurationUnit = "day"
)

// AccessDuration is the course's access-duration policy as a tagged value.
// It is validated at authoring time; nothing downstream parses free text.
type AccessDuration struct {
	Count int          `json:"count"`
	Unit  DurationUnit `json:"unit"`
}

func (d AccessDuration) Validate() error {
	if d.Count <= 0 {
		return domain.ErrInvalidArgument
	}
	switch d.Unit {
	case DurationUnitYear, DurationUnitMonth, DurationUnitDay:
		return nil
	}
	return domain.ErrInvalidArgument
}

// AddTo advances t by the policy using calendar arithmetic: adding N
// years/months lands on the same day-of-month in the target month, clamped to
// the last valid day when the target month is shorter (Jan 31 + 1 month =
// Feb 28/29).
func (d AccessDuration) AddTo(t time.Time) time.Time {
	switch d.Unit {
	case DurationUnitDay:
		return t.AddDate(0, 0, d.Count)
	case DurationUnitMonth:
		return addMonthsClamped(t, d.Count)
	case DurationUnitYear:
		return addMonthsClamped(t, 12*d.Count)
	}
	return t
}

func (d AccessDuration) String() string {
	unit := string(d.Unit)
	if d.Count != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", d.Count, unit)
}

// ParseAccessDuration turns a human-authored policy string ("1 year",
// "6 months", "30 days") into a tagged value. Used on the authoring/seed path
// only.
func ParseAccessDuration(s string) (AccessDuration, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 2 {
		return AccessDuration{}, fmt.Errorf("%w: duration %q", domain.ErrInvalidArgument, s)
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil {
		return AccessDuration{}, fmt.Errorf("%w: duration count %q", domain.ErrInvalidArgument, fields[0])
	}
	d := AccessDuration{Count: count, Unit: DurationUnit(strings.TrimSuffix(fields[1], "s"))}
	if err := d.Validate(); err != nil {
		return AccessDuration{}, fmt.Errorf("%w: duration %q", domain.ErrInvalidArgument, s)
	}
	return d, nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, day := t.Date()
	total := int(m) - 1 + months
	ty := y + total/12
	tm := time.Month(total%12 + 1)
	if last := daysInMonth(ty, tm); day > last {
		day = last
	}
	h, min, sec := t.Clock()
	return time.Date(ty, tm, day, h, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(y int, m time.Month) int {
	// day 0 of the next month is the last day of m
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Topic is a single content unit. Free topics are previewable without an
// enrollment.
type Topic struct {
	Title  string `json:"title"`
	IsFree bool   `json:"is_free"`
}

type Section struct {
	Title  string  `json:"title"`
	Topics []Topic `json:"topics"`
}

// Course is catalog metadata: price, publication status, access-duration
// policy and the section/topic tree.
type Course struct {
	ID              string
	Title           string
	Description     string
	Price           int64 // whole currency units (e.g. INR)
	Currency        string
	Status          CourseStatus
	AccessDuration  AccessDuration
	Sections        []Section
	EnrollmentCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewCourse(id, title string, price int64, currency string, duration AccessDuration) (*Course, error) {
	if title == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if price < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if err := duration.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &Course{
		ID:             id,
		Title:          title,
		Price:          price,
		Currency:       currency,
		Status:         CourseStatusDraft,
		AccessDuration: duration,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// TotalTopics counts topics across all sections. The completion percentage is
// always recomputed against the current tree, so it shifts when content is
// added after enrollment.
func (c *Course) TotalTopics() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Topics)
	}
	return n
}

// Topic resolves a (section, topic) index pair against the tree.
func (c *Course) Topic(sectionIdx, topicIdx int) (*Topic, error) {
	if sectionIdx < 0 || sectionIdx >= len(c.Sections) {
		return nil, domain.ErrNotFound
	}
	sec := &c.Sections[sectionIdx]
	if topicIdx < 0 || topicIdx >= len(sec.Topics) {
		return nil, domain.ErrNotFound
	}
	return &sec.Topics[topicIdx], nil
}
