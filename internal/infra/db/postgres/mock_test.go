//go:build !integration

package postgres

import (
	"context"
	"time"

	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/repository"
	red "learning-platform-core/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerCourseRepo mocks the database repository that the decorator wraps.
type mockInnerCourseRepo struct {
	SaveFunc                     func(ctx context.Context, tx repository.Tx, c *model.Course) error
	FindByIDFunc                 func(ctx context.Context, tx repository.Tx, id string) (*model.Course, error)
	ListPublishedFunc            func(ctx context.Context, tx repository.Tx) ([]*model.Course, error)
	IncrementEnrollmentCountFunc func(ctx context.Context, tx repository.Tx, id string) error
}

var _ repository.CourseRepository = (*mockInnerCourseRepo)(nil)

func (m *mockInnerCourseRepo) Save(ctx context.Context, tx repository.Tx, c *model.Course) error {
	return m.SaveFunc(ctx, tx, c)
}
func (m *mockInnerCourseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerCourseRepo) ListPublished(ctx context.Context, tx repository.Tx) ([]*model.Course, error) {
	return m.ListPublishedFunc(ctx, tx)
}
func (m *mockInnerCourseRepo) IncrementEnrollmentCount(ctx context.Context, tx repository.Tx, id string) error {
	return m.IncrementEnrollmentCountFunc(ctx, tx, id)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
