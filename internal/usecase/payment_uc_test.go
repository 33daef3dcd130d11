//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"learning-platform-core/internal/config"
	"learning-platform-core/internal/domain"
	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/adapter"
	"learning-platform-core/internal/domain/ports/repository"
	"learning-platform-core/internal/usecase"
)

// paymentUCTestDeps holds all the mock dependencies for the payment use case
// tests.
type paymentUCTestDeps struct {
	payments    *MockPaymentRepo
	users       *MockUserRepo
	courses     *MockCourseRepo
	enrollments *MockEnrollmentRepo
	gateway     *MockGateway
	tm          *MockTxManager
	enrollUC    usecase.EnrollmentUseCase
}

func testBilling() config.BillingConfig {
	return config.BillingConfig{RegistrationFee: 500, Currency: "INR", DefaultAccessDuration: "1 year"}
}

func newPaymentUCDeps() *paymentUCTestDeps {
	deps := &paymentUCTestDeps{
		payments:    NewMockPaymentRepo(),
		users:       NewMockUserRepo(),
		courses:     NewMockCourseRepo(),
		enrollments: NewMockEnrollmentRepo(),
		gateway:     &MockGateway{},
		tm:          NewMockTxManager(),
	}
	deps.enrollUC = usecase.NewEnrollmentUseCase(deps.enrollments, deps.courses, newTestLogger())
	return deps
}

func (d *paymentUCTestDeps) uc() usecase.PaymentUseCase {
	return usecase.NewPaymentUseCase(d.payments, d.users, d.courses, d.enrollments, d.enrollUC, d.gateway, d.tm, testBilling(), newTestLogger())
}

func (d *paymentUCTestDeps) seedStudent(ctx context.Context, id string, feePaid bool) *model.User {
	u, _ := model.NewUser(id, id+"@example.com", "Test Student", model.RoleStudent)
	u.RegistrationFeePaid = feePaid
	_ = d.users.Save(ctx, nil, u)
	return u
}

func (d *paymentUCTestDeps) seedCourse(ctx context.Context, id string, status model.CourseStatus, price int64) *model.Course {
	c, _ := model.NewCourse(id, "Course "+id, price, "INR", model.AccessDuration{Count: 1, Unit: model.DurationUnitYear})
	c.Status = status
	c.Sections = []model.Section{{Title: "S1", Topics: []model.Topic{{Title: "T1", IsFree: true}, {Title: "T2"}}}}
	_ = d.courses.Save(ctx, nil, c)
	return c
}

func TestPaymentUseCase_CreateIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("registration intent opens a pending payment at the configured fee", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", false)

		p, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeRegistration, "")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if p.Status != model.PaymentStatusPending {
			t.Errorf("status = %s, want pending", p.Status)
		}
		if p.Amount != 500 || p.Currency != "INR" {
			t.Errorf("amount = %d %s, want 500 INR", p.Amount, p.Currency)
		}
		if p.OrderID == "" {
			t.Error("expected a gateway order handle")
		}
		if p.CourseID != nil {
			t.Error("registration payment must not carry a course id")
		}
	})

	t.Run("registration intent is refused once the fee is paid", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", true)

		_, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeRegistration, "")
		if !errors.Is(err, domain.ErrAlreadySatisfied) {
			t.Fatalf("err = %v, want ErrAlreadySatisfied", err)
		}
	})

	t.Run("course intent captures the catalog price at creation", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", true)
		course := deps.seedCourse(ctx, "course-1", model.CourseStatusPublished, 4999)

		p, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeCourse, course.ID)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if p.Amount != 4999 {
			t.Errorf("amount = %d, want 4999", p.Amount)
		}
		if p.CourseID == nil || *p.CourseID != course.ID {
			t.Errorf("course id not captured: %v", p.CourseID)
		}

		// price change after intent creation must not touch the payment
		course.Price = 9999
		_ = deps.courses.Save(ctx, nil, course)
		stored, _ := deps.payments.FindByID(ctx, nil, p.ID)
		if stored.Amount != 4999 {
			t.Errorf("stored amount = %d, want 4999", stored.Amount)
		}
	})

	t.Run("draft course is not purchasable", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", true)
		deps.seedCourse(ctx, "course-1", model.CourseStatusDraft, 100)

		_, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeCourse, "course-1")
		if !errors.Is(err, domain.ErrCourseNotPublished) {
			t.Fatalf("err = %v, want ErrCourseNotPublished", err)
		}
	})

	t.Run("active or expired enrollment blocks a second purchase intent", func(t *testing.T) {
		for _, status := range []model.EnrollmentStatus{model.EnrollmentStatusActive, model.EnrollmentStatusExpired} {
			deps := newPaymentUCDeps()
			deps.seedStudent(ctx, "user-1", true)
			deps.seedCourse(ctx, "course-1", model.CourseStatusPublished, 100)
			e, _ := model.NewEnrollment("e-1", "user-1", "course-1", "pay-0", time.Now(), model.AccessDuration{Count: 1, Unit: model.DurationUnitYear})
			e.Status = status
			_ = deps.enrollments.Insert(ctx, nil, e)

			_, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeCourse, "course-1")
			if !errors.Is(err, domain.ErrAlreadyEnrolled) {
				t.Fatalf("status %s: err = %v, want ErrAlreadyEnrolled", status, err)
			}
		}
	})

	t.Run("cancelled enrollment permits re-purchase", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", true)
		deps.seedCourse(ctx, "course-1", model.CourseStatusPublished, 100)
		e, _ := model.NewEnrollment("e-1", "user-1", "course-1", "pay-0", time.Now(), model.AccessDuration{Count: 1, Unit: model.DurationUnitYear})
		e.Status = model.EnrollmentStatusCancelled
		_ = deps.enrollments.Insert(ctx, nil, e)

		if _, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeCourse, "course-1"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
	})

	t.Run("gateway failure leaves no payment record", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", false)
		deps.gateway.CreateOrderFunc = func(ctx context.Context, amount int64, currency, receipt string) (*adapter.Order, error) {
			return nil, domain.ErrGatewayUnavailable
		}

		_, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeRegistration, "")
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
		}
		payments, _ := deps.payments.ListByUser(ctx, nil, "user-1")
		if len(payments) != 0 {
			t.Errorf("expected no saved payments, got %d", len(payments))
		}
	})

	t.Run("unknown payment type is rejected", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", false)

		_, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentType("gift"), "")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("err = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestPaymentUseCase_Verify(t *testing.T) {
	ctx := context.Background()

	setupRegistration := func(deps *paymentUCTestDeps) *model.Payment {
		deps.seedStudent(ctx, "user-1", false)
		p, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeRegistration, "")
		if err != nil {
			panic(err)
		}
		return p
	}

	setupCourse := func(deps *paymentUCTestDeps) *model.Payment {
		deps.seedStudent(ctx, "user-1", true)
		deps.seedCourse(ctx, "course-1", model.CourseStatusPublished, 4999)
		p, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeCourse, "course-1")
		if err != nil {
			panic(err)
		}
		return p
	}

	t.Run("registration verify completes the payment and clears the fee gate", func(t *testing.T) {
		deps := newPaymentUCDeps()
		p := setupRegistration(deps)

		out, err := deps.uc().Verify(ctx, p.ID, p.OrderID, "gw-pay-1", "valid")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if out.Status != model.PaymentStatusCompleted {
			t.Errorf("status = %s, want completed", out.Status)
		}
		if out.PaidAt == nil {
			t.Error("paid_at not set")
		}
		u, _ := deps.users.FindByID(ctx, nil, "user-1")
		if !u.RegistrationFeePaid {
			t.Error("registration fee flag not cleared")
		}
		if u.RegistrationPaymentID == nil || *u.RegistrationPaymentID != p.ID {
			t.Error("registration payment evidence not linked")
		}
	})

	t.Run("course verify materializes the enrollment in the same transaction", func(t *testing.T) {
		deps := newPaymentUCDeps()
		p := setupCourse(deps)

		if _, err := deps.uc().Verify(ctx, p.ID, p.OrderID, "gw-pay-1", "valid"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		e, err := deps.enrollments.FindByUserAndCourse(ctx, nil, "user-1", "course-1")
		if err != nil {
			t.Fatalf("enrollment not materialized: %v", err)
		}
		if e.PaymentID != p.ID {
			t.Errorf("enrollment payment id = %s, want %s", e.PaymentID, p.ID)
		}
		if e.EffectiveStatus(time.Now()) != model.EnrollmentStatusActive {
			t.Errorf("enrollment not active")
		}
		if deps.courses.IncrementCalls != 1 {
			t.Errorf("enrollment counter moved %d times, want 1", deps.courses.IncrementCalls)
		}
	})

	t.Run("signature mismatch rejects the callback and leaves the payment pending", func(t *testing.T) {
		deps := newPaymentUCDeps()
		p := setupRegistration(deps)

		_, err := deps.uc().Verify(ctx, p.ID, p.OrderID, "gw-pay-1", "forged")
		if !errors.Is(err, domain.ErrSignatureMismatch) {
			t.Fatalf("err = %v, want ErrSignatureMismatch", err)
		}
		stored, _ := deps.payments.FindByID(ctx, nil, p.ID)
		if stored.Status != model.PaymentStatusPending {
			t.Errorf("status = %s, want pending (a correct callback must still be able to land)", stored.Status)
		}
	})

	t.Run("duplicate delivery is a no-op success without repeating side effects", func(t *testing.T) {
		deps := newPaymentUCDeps()
		p := setupCourse(deps)

		first, err := deps.uc().Verify(ctx, p.ID, p.OrderID, "gw-pay-1", "valid")
		if err != nil {
			t.Fatalf("first verify: %v", err)
		}
		second, err := deps.uc().Verify(ctx, p.ID, p.OrderID, "gw-pay-1", "valid")
		if err != nil {
			t.Fatalf("second verify: %v", err)
		}
		if second.Status != model.PaymentStatusCompleted {
			t.Errorf("second verify status = %s", second.Status)
		}
		if second.ID != first.ID {
			t.Errorf("second verify returned a different record")
		}
		if deps.courses.IncrementCalls != 1 {
			t.Errorf("enrollment counter moved %d times, want exactly 1", deps.courses.IncrementCalls)
		}
	})

	t.Run("order handle mismatch is rejected", func(t *testing.T) {
		deps := newPaymentUCDeps()
		p := setupRegistration(deps)

		_, err := deps.uc().Verify(ctx, p.ID, "order-someone-else", "gw-pay-1", "valid")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("verify against a failed payment reports an invalid transition", func(t *testing.T) {
		deps := newPaymentUCDeps()
		p := setupRegistration(deps)

		stored, _ := deps.payments.FindByID(ctx, nil, p.ID)
		_ = stored.MarkFailed("abandoned")
		_ = deps.payments.Save(ctx, nil, stored)

		_, err := deps.uc().Verify(ctx, p.ID, p.OrderID, "gw-pay-1", "valid")
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("missing parameters are rejected before any lookup", func(t *testing.T) {
		deps := newPaymentUCDeps()
		for name, args := range map[string][3]string{
			"no order":     {"", "gw-pay-1", "valid"},
			"no gw id":     {"order-1", "", "valid"},
			"no signature": {"order-1", "gw-pay-1", ""},
		} {
			_, err := deps.uc().Verify(ctx, "pay-1", args[0], args[1], args[2])
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("%s: err = %v, want ErrInvalidArgument", name, err)
			}
		}
	})

	t.Run("empty payment id resolves the record by order handle", func(t *testing.T) {
		deps := newPaymentUCDeps()
		p := setupCourse(deps)

		out, err := deps.uc().Verify(ctx, "", p.OrderID, "gw-pay-1", "valid")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if out.ID != p.ID {
			t.Errorf("resolved payment %s, want %s", out.ID, p.ID)
		}
		if out.Status != model.PaymentStatusCompleted {
			t.Errorf("status = %s, want completed", out.Status)
		}
		if _, err := deps.enrollments.FindByUserAndCourse(ctx, nil, "user-1", "course-1"); err != nil {
			t.Errorf("enrollment not materialized: %v", err)
		}
	})

	t.Run("empty payment id with an unknown order handle surfaces not found", func(t *testing.T) {
		deps := newPaymentUCDeps()
		_, err := deps.uc().Verify(ctx, "", "order-unknown", "gw-pay-1", "valid")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown payment id surfaces not found", func(t *testing.T) {
		deps := newPaymentUCDeps()
		_, err := deps.uc().Verify(ctx, "missing", "order-1", "gw-pay-1", "valid")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestPaymentUseCase_ReapStalePending(t *testing.T) {
	ctx := context.Background()

	ageIntent := func(deps *paymentUCTestDeps, id string, age time.Duration) {
		p, err := deps.payments.FindByID(ctx, nil, id)
		if err != nil {
			panic(err)
		}
		p.CreatedAt = time.Now().Add(-age)
		if err := deps.payments.Save(ctx, nil, p); err != nil {
			panic(err)
		}
	}

	t.Run("cancels stale intents and leaves fresh ones pending", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", false)
		stale, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeRegistration, "")
		if err != nil {
			t.Fatalf("intent: %v", err)
		}
		ageIntent(deps, stale.ID, 48*time.Hour)

		deps.seedStudent(ctx, "user-2", false)
		fresh, err := deps.uc().CreateIntent(ctx, "user-2", model.PaymentTypeRegistration, "")
		if err != nil {
			t.Fatalf("intent: %v", err)
		}

		reaped, err := deps.uc().ReapStalePending(ctx, time.Now().Add(-24*time.Hour), 100)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if reaped != 1 {
			t.Errorf("reaped = %d, want 1", reaped)
		}
		got, _ := deps.payments.FindByID(ctx, nil, stale.ID)
		if got.Status != model.PaymentStatusCancelled {
			t.Errorf("stale intent status = %s, want cancelled", got.Status)
		}
		got, _ = deps.payments.FindByID(ctx, nil, fresh.ID)
		if got.Status != model.PaymentStatusPending {
			t.Errorf("fresh intent status = %s, want pending", got.Status)
		}
	})

	t.Run("completed payments are never reaped", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", false)
		p, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeRegistration, "")
		if err != nil {
			t.Fatalf("intent: %v", err)
		}
		if _, err := deps.uc().Verify(ctx, p.ID, p.OrderID, "gw-pay-1", "valid"); err != nil {
			t.Fatalf("verify: %v", err)
		}
		ageIntent(deps, p.ID, 48*time.Hour)

		reaped, err := deps.uc().ReapStalePending(ctx, time.Now().Add(-24*time.Hour), 100)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if reaped != 0 {
			t.Errorf("reaped = %d, want 0", reaped)
		}
		got, _ := deps.payments.FindByID(ctx, nil, p.ID)
		if got.Status != model.PaymentStatusCompleted {
			t.Errorf("status = %s, want completed", got.Status)
		}
	})

	t.Run("a callback landing mid-reap wins the race", func(t *testing.T) {
		deps := newPaymentUCDeps()
		deps.seedStudent(ctx, "user-1", false)
		p, err := deps.uc().CreateIntent(ctx, "user-1", model.PaymentTypeRegistration, "")
		if err != nil {
			t.Fatalf("intent: %v", err)
		}
		ageIntent(deps, p.ID, 48*time.Hour)

		deps.payments.UpdateStatusIfPendingFunc = func(ctx context.Context, tx repository.Tx, id string, next model.PaymentStatus, gatewayPaymentID, signature *string, paidAt *time.Time) (bool, error) {
			return false, nil
		}
		reaped, err := deps.uc().ReapStalePending(ctx, time.Now().Add(-24*time.Hour), 100)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if reaped != 0 {
			t.Errorf("reaped = %d, want 0 when the swap is lost", reaped)
		}
	})
}
