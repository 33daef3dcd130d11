package adapter

import (
	"context"
)

// Order is the provider-agnostic result of creating a payment intent with the
// external processor.
type Order struct {
	ID       string // provider order handle
	Amount   int64
	Currency string
	Receipt  string // our reference passed to the provider
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// CreateOrder registers a payment intent with the provider and returns its
	// order handle. Calls carry a bounded timeout; transport failures are
	// wrapped in domain.ErrGatewayUnavailable so callers can tell a retryable
	// outage from a verified rejection.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)

	// VerifySignature recomputes the keyed hash over (orderID, paymentID) and
	// compares it to the supplied signature in constant time. This is the sole
	// authenticity check on gateway callbacks.
	VerifySignature(orderID, paymentID, signature string) bool
}
