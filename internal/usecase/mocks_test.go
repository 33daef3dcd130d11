//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"learning-platform-core/internal/domain"
	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/adapter"
	"learning-platform-core/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// -----------------------------
// Mock repositories
// -----------------------------

type MockUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User

	FindByIDFunc               func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	SetRegistrationFeePaidFunc func(ctx context.Context, tx repository.Tx, userID, paymentID string) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: make(map[string]*model.User)}
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) SetRegistrationFeePaid(ctx context.Context, tx repository.Tx, userID, paymentID string) error {
	if m.SetRegistrationFeePaidFunc != nil {
		return m.SetRegistrationFeePaidFunc(ctx, tx, userID, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.RegistrationFeePaid = true
	u.RegistrationPaymentID = &paymentID
	return nil
}

type MockCourseRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Course

	IncrementCalls int

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Course, error)
}

var _ repository.CourseRepository = (*MockCourseRepo)(nil)

func NewMockCourseRepo() *MockCourseRepo {
	return &MockCourseRepo{store: make(map[string]*model.Course)}
}

func (m *MockCourseRepo) Save(ctx context.Context, tx repository.Tx, c *model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *MockCourseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCourseRepo) ListPublished(ctx context.Context, tx repository.Tx) ([]*model.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Course
	for _, c := range m.store {
		if c.Status == model.CourseStatusPublished {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockCourseRepo) IncrementEnrollmentCount(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.EnrollmentCount++
	m.IncrementCalls++
	return nil
}

type MockPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment

	SaveFunc                  func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	UpdateStatusIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, next model.PaymentStatus, gatewayPaymentID, signature *string, paidAt *time.Time) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// UpdateStatusIfPending mirrors the SQL compare-and-set, including the losing
// branch for already-settled rows.
func (m *MockPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, next model.PaymentStatus, gatewayPaymentID, signature *string, paidAt *time.Time) (bool, error) {
	if m.UpdateStatusIfPendingFunc != nil {
		return m.UpdateStatusIfPendingFunc(ctx, tx, id, next, gatewayPaymentID, signature, paidAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = next
	if gatewayPaymentID != nil {
		p.GatewayPaymentID = *gatewayPaymentID
	}
	if signature != nil {
		p.Signature = *signature
	}
	p.PaidAt = paidAt
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type MockEnrollmentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Enrollment // by ID

	InsertFunc func(ctx context.Context, tx repository.Tx, e *model.Enrollment) error
	UpdateFunc func(ctx context.Context, tx repository.Tx, e *model.Enrollment) error
}

var _ repository.EnrollmentRepository = (*MockEnrollmentRepo)(nil)

func NewMockEnrollmentRepo() *MockEnrollmentRepo {
	return &MockEnrollmentRepo{store: make(map[string]*model.Enrollment)}
}

func pairKey(userID, courseID string) string { return userID + "/" + courseID }

// Insert enforces the (user, course) uniqueness the real store guarantees.
func (m *MockEnrollmentRepo) Insert(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.store {
		if x.UserID == e.UserID && x.CourseID == e.CourseID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *MockEnrollmentRepo) Update(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[e.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *MockEnrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockEnrollmentRepo) FindByUserAndCourse(ctx context.Context, tx repository.Tx, userID, courseID string) (*model.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.store {
		if pairKey(e.UserID, e.CourseID) == pairKey(userID, courseID) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockEnrollmentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Enrollment
	for _, e := range m.store {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -----------------------------
// Mock gateway and tx manager
// -----------------------------

type MockGateway struct {
	mu  sync.Mutex
	seq int

	CreateOrderFunc     func(ctx context.Context, amount int64, currency, receipt string) (*adapter.Order, error)
	VerifySignatureFunc func(orderID, paymentID, signature string) bool
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*adapter.Order, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, amount, currency, receipt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return &adapter.Order{
		ID:       fmt.Sprintf("order-%d", m.seq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if m.VerifySignatureFunc != nil {
		return m.VerifySignatureFunc(orderID, paymentID, signature)
	}
	return signature == "valid"
}

type noTx struct{}

type MockTxManager struct{}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, noTx{})
}
