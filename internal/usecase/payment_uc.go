package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"learning-platform-core/internal/config"
	"learning-platform-core/internal/domain"
	"learning-platform-core/internal/domain/model"
	"learning-platform-core/internal/domain/ports/adapter"
	"learning-platform-core/internal/domain/ports/repository"
	"learning-platform-core/internal/infra/logging"
	"learning-platform-core/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase drives the payment half of the pipeline: intent creation and
// idempotent verification of gateway callbacks.
type PaymentUseCase interface {
	// CreateIntent opens a pending payment for the registration fee or a
	// course purchase. The returned payment carries the gateway order handle
	// the client needs to complete checkout.
	CreateIntent(ctx context.Context, userID string, kind model.PaymentType, courseID string) (*model.Payment, error)
	// Verify checks the callback signature and, exactly once per payment,
	// transitions it to completed and runs the type-specific side effect.
	// Duplicate deliveries of an already-completed payment return the stored
	// record with no error and no side effects. Webhook-style callbacks that
	// only carry the gateway order handle may pass an empty paymentID; the
	// record is then resolved by orderID.
	Verify(ctx context.Context, paymentID, orderID, gatewayPaymentID, signature string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Payment, error)
	// ReapStalePending cancels pending intents older than the cutoff so
	// abandoned checkouts don't pile up. Returns the number cancelled.
	ReapStalePending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type paymentUC struct {
	payments    repository.PaymentRepository
	users       repository.UserRepository
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	enrollUC    EnrollmentUseCase
	gateway     adapter.PaymentGateway
	tm          repository.TransactionManager
	billing     config.BillingConfig
	log         *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	courses repository.CourseRepository,
	enrollments repository.EnrollmentRepository,
	enrollUC EnrollmentUseCase,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	billing config.BillingConfig,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		payments:    payments,
		users:       users,
		courses:     courses,
		enrollments: enrollments,
		enrollUC:    enrollUC,
		gateway:     gateway,
		tm:          tm,
		billing:     billing,
		log:         logger,
	}
}

func (u *paymentUC) CreateIntent(ctx context.Context, userID string, kind model.PaymentType, courseID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateIntent")()
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if courseID != "" {
		ctx = logging.WithCourseID(ctx, courseID)
	}
	user, err := u.users.FindByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	var (
		amount   int64
		currency string
	)
	switch kind {
	case model.PaymentTypeRegistration:
		if user.RegistrationFeePaid {
			return nil, domain.ErrAlreadySatisfied
		}
		amount = u.billing.RegistrationFee
		currency = u.billing.Currency

	case model.PaymentTypeCourse:
		if courseID == "" {
			return nil, fmt.Errorf("%w: course id required for course payment", domain.ErrInvalidArgument)
		}
		course, err := u.courses.FindByID(ctx, nil, courseID)
		if err != nil {
			return nil, err
		}
		if course.Status != model.CourseStatusPublished {
			return nil, domain.ErrCourseNotPublished
		}
		existing, err := u.enrollments.FindByUserAndCourse(ctx, nil, userID, courseID)
		switch {
		case err == nil:
			// Expired still counts as "already had access"; renewal is a
			// distinct flow from first purchase.
			switch existing.EffectiveStatus(time.Now()) {
			case model.EnrollmentStatusActive, model.EnrollmentStatusExpired:
				return nil, domain.ErrAlreadyEnrolled
			}
		case errors.Is(err, domain.ErrNotFound):
			// first purchase
		default:
			return nil, err
		}
		// Price captured now; later catalog changes don't touch this intent.
		amount = course.Price
		currency = course.Currency

	default:
		return nil, fmt.Errorf("%w: unknown payment type %q", domain.ErrInvalidArgument, kind)
	}

	id := uuid.NewString()
	order, err := u.gateway.CreateOrder(ctx, amount, currency, id)
	if err != nil {
		return nil, err
	}

	var p *model.Payment
	if kind == model.PaymentTypeRegistration {
		p, err = model.NewRegistrationPayment(id, userID, amount, currency, u.gateway.Name(), order.ID, order.Receipt)
	} else {
		p, err = model.NewCoursePayment(id, userID, courseID, amount, currency, u.gateway.Name(), order.ID, order.Receipt)
	}
	if err != nil {
		return nil, err
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, err
	}

	metrics.IncPayment(string(p.Status))
	logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Info().
		Str("order_id", p.OrderID).
		Str("type", string(kind)).
		Int64("amount", amount).
		Msg("payment intent created")
	return p, nil
}

func (u *paymentUC) Verify(ctx context.Context, paymentID, orderID, gatewayPaymentID, signature string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Verify")()
	start := time.Now()
	if orderID == "" || gatewayPaymentID == "" || signature == "" {
		metrics.IncPaymentVerify("fail", "missing_params")
		return nil, domain.ErrInvalidArgument
	}

	// Sole authenticity check. A mismatch is never retried automatically and
	// leaves the payment untouched, so a correct callback can still land.
	if !u.gateway.VerifySignature(orderID, gatewayPaymentID, signature) {
		metrics.IncPaymentVerify("fail", "signature_mismatch")
		logging.With(logging.WithPaymentID(ctx, paymentID), u.log).Error().
			Str("order_id", orderID).
			Msg("callback signature mismatch")
		return nil, domain.ErrSignatureMismatch
	}

	var out *model.Payment
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Gateway webhooks identify the payment by order handle only; client
		// relays carry our payment id as well. Both resolve to the same row.
		var p *model.Payment
		var err error
		if paymentID == "" {
			p, err = u.payments.FindByOrderID(ctx, tx, orderID)
		} else {
			p, err = u.payments.FindByID(ctx, tx, paymentID)
		}
		if err != nil {
			return err
		}
		if p.OrderID != orderID {
			return fmt.Errorf("%w: order handle does not match payment record", domain.ErrInvalidArgument)
		}

		now := time.Now()
		won, err := u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusCompleted, &gatewayPaymentID, &signature, &now)
		if err != nil {
			return err
		}
		if !won {
			current, err := u.payments.FindByID(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if current.Status == model.PaymentStatusCompleted {
				// Duplicate delivery: no-op success, side effects already ran
				// (or are re-derivable via the idempotent materialize below).
				out = current
				return nil
			}
			return domain.ErrInvalidTransition
		}

		if err := p.MarkCompleted(gatewayPaymentID, signature, now); err != nil {
			return err
		}

		// Status write and side effect commit or roll back together.
		switch p.Type {
		case model.PaymentTypeRegistration:
			if err := u.users.SetRegistrationFeePaid(ctx, tx, p.UserID, p.ID); err != nil {
				return err
			}
		case model.PaymentTypeCourse:
			if _, err := u.enrollUC.Materialize(ctx, tx, p); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		metrics.IncPaymentVerify("fail", "confirm_error")
		metrics.ObservePaymentVerifyDuration("fail", time.Since(start).Seconds())
		return nil, err
	}

	metrics.IncPayment(string(out.Status))
	metrics.IncPaymentVerify("ok", "")
	metrics.ObservePaymentVerifyDuration("ok", time.Since(start).Seconds())
	logging.With(logging.WithPaymentID(ctx, out.ID), u.log).Info().
		Str("type", string(out.Type)).
		Str("status", string(out.Status)).
		Msg("payment verified")
	return out, nil
}

func (u *paymentUC) ListByUser(ctx context.Context, userID string) ([]*model.Payment, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.payments.ListByUser(ctx, nil, userID)
}

func (u *paymentUC) ReapStalePending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ReapStalePending")()
	stale, err := u.payments.ListPendingOlderThan(ctx, nil, olderThan, limit)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, p := range stale {
		// The CAS keeps this safe against a callback landing mid-reap: a
		// payment that completes concurrently simply loses nothing.
		won, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusCancelled, nil, nil, nil)
		if err != nil {
			return reaped, err
		}
		if !won {
			continue
		}
		metrics.IncPayment(string(model.PaymentStatusCancelled))
		reaped++
	}
	if reaped > 0 {
		u.log.Info().Int("count", reaped).Time("older_than", olderThan).Msg("stale payment intents cancelled")
	}
	return reaped, nil
}
