package model

import (
	"time"

	"github.com/google/uuid"

	"learning-platform-core/internal/domain"
)

type PaymentType string

const (
	PaymentTypeRegistration PaymentType = "registration"
	PaymentTypeCourse       PaymentType = "course"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // intent created, awaiting gateway callback
	PaymentStatusCompleted PaymentStatus = "completed" // callback verified
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"  // administrative only
	PaymentStatusCancelled PaymentStatus = "cancelled" // caller abandoned the intent
)

// Refund is an administrative sub-record; the pipeline models it but never
// drives it.
type Refund struct {
	RefID      string    `json:"ref_id"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	RefundedAt time.Time `json:"refunded_at"`
}

// Payment records one intent against the external gateway: the registration
// fee or a course purchase. Amount is captured at creation time; later course
// price changes do not touch in-flight payments.
type Payment struct {
	ID               string  // UUID
	UserID           string  // UUID
	CourseID         *string // set iff Type == PaymentTypeCourse
	Amount           int64
	Currency         string
	Type             PaymentType
	Status           PaymentStatus
	Provider         string // e.g. "razorpay"
	OrderID          string // gateway order handle from intent creation
	GatewayPaymentID string // gateway payment handle, set on verification
	Signature        string // verified callback signature, stored as evidence
	Receipt          string
	FailureReason    string
	Refund           *Refund
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PaidAt           *time.Time
}

func NewRegistrationPayment(id, userID string, amount int64, currency, provider, orderID, receipt string) (*Payment, error) {
	return newPayment(id, userID, nil, amount, currency, PaymentTypeRegistration, provider, orderID, receipt)
}

func NewCoursePayment(id, userID, courseID string, amount int64, currency, provider, orderID, receipt string) (*Payment, error) {
	if courseID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return newPayment(id, userID, &courseID, amount, currency, PaymentTypeCourse, provider, orderID, receipt)
}

func newPayment(id, userID string, courseID *string, amount int64, currency string, typ PaymentType, provider, orderID, receipt string) (*Payment, error) {
	if userID == "" || currency == "" || orderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &Payment{
		ID:        id,
		UserID:    userID,
		CourseID:  courseID,
		Amount:    amount,
		Currency:  currency,
		Type:      typ,
		Status:    PaymentStatusPending,
		Provider:  provider,
		OrderID:   orderID,
		Receipt:   receipt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// paymentTransitions is the full state machine. Nothing leaves completed
// except the administrative refund; nothing leaves failed or cancelled.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted: {PaymentStatusRefunded},
}

func (p *Payment) CanTransition(next PaymentStatus) bool {
	for _, s := range paymentTransitions[p.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// MarkCompleted transitions pending -> completed, storing the gateway payment
// handle and the verified signature. A payment that is already completed
// returns ErrAlreadyProcessed: that is the idempotency boundary for duplicate
// callback delivery.
func (p *Payment) MarkCompleted(gatewayPaymentID, signature string, at time.Time) error {
	if p.Status == PaymentStatusCompleted {
		return domain.ErrAlreadyProcessed
	}
	if !p.CanTransition(PaymentStatusCompleted) {
		return domain.ErrInvalidTransition
	}
	p.Status = PaymentStatusCompleted
	p.GatewayPaymentID = gatewayPaymentID
	p.Signature = signature
	p.PaidAt = &at
	p.UpdatedAt = at
	return nil
}

func (p *Payment) MarkFailed(reason string) error {
	if !p.CanTransition(PaymentStatusFailed) {
		return domain.ErrInvalidTransition
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.UpdatedAt = time.Now()
	return nil
}

func (p *Payment) MarkCancelled() error {
	if !p.CanTransition(PaymentStatusCancelled) {
		return domain.ErrInvalidTransition
	}
	p.Status = PaymentStatusCancelled
	p.UpdatedAt = time.Now()
	return nil
}

// MarkRefunded is administrative; exposed for completeness, never called by
// the verification path.
func (p *Payment) MarkRefunded(r Refund) error {
	if !p.CanTransition(PaymentStatusRefunded) {
		return domain.ErrInvalidTransition
	}
	p.Status = PaymentStatusRefunded
	p.Refund = &r
	p.UpdatedAt = time.Now()
	return nil
}
