package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/repository"
	"learning-platform-core/internal/infra/metrics"
	red "learning-platform-core/internal/infra/redis"
)

var _ repository.CourseRepository = (*courseRepoCacheDecorator)(nil)

// courseRepoCacheDecorator caches the course catalog in Redis. Courses change
// rarely relative to how often access checks read them, so a short TTL plus
// invalidation on writes keeps the hot path off Postgres.
type courseRepoCacheDecorator struct {
	inner repository.CourseRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewCourseRepoCacheDecorator(inner repository.CourseRepository, cache red.RedisClient) repository.CourseRepository {
	return &courseRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   15 * time.Minute,
	}
}

func (d *courseRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	// Reads inside a transaction must see transactional state, not the cache.
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := fmt.Sprintf("course:%s", id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("course", "hit")
		var course model.Course
		if json.Unmarshal([]byte(val), &course) == nil {
			return &course, nil
		}
	}

	metrics.IncCacheRequest("course", "miss")
	course, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if course != nil {
		bytes, _ := json.Marshal(course)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return course, nil
}

func (d *courseRepoCacheDecorator) ListPublished(ctx context.Context, tx repository.Tx) ([]*model.Course, error) {
	if tx != nil {
		return d.inner.ListPublished(ctx, tx)
	}
	key := "courses:published"
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("course_list", "hit")
		var courses []*model.Course
		if json.Unmarshal([]byte(val), &courses) == nil {
			return courses, nil
		}
	}

	metrics.IncCacheRequest("course_list", "miss")
	courses, err := d.inner.ListPublished(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(courses) > 0 {
		bytes, _ := json.Marshal(courses)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return courses, nil
}

func (d *courseRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, course *model.Course) error {
	if err := d.inner.Save(ctx, tx, course); err != nil {
		return err
	}
	// Invalidate after the write lands; deleting first would let a concurrent
	// read repopulate the stale value for a full TTL.
	d.invalidate(ctx, course.ID)
	return nil
}

func (d *courseRepoCacheDecorator) IncrementEnrollmentCount(ctx context.Context, tx repository.Tx, id string) error {
	if err := d.inner.IncrementEnrollmentCount(ctx, tx, id); err != nil {
		return err
	}
	d.invalidate(ctx, id)
	return nil
}

func (d *courseRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	d.cache.Del(ctx, fmt.Sprintf("course:%s", id))
	d.cache.Del(ctx, "courses:published")
}
