package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"learning-platform-core/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a simple in-memory gateway for tests and local development.
// It mints deterministic order ids and signs callbacks with a fixed secret so
// the full verify path can be exercised without a provider account.
type NoopGateway struct {
	mu     sync.Mutex
	seq    int64
	secret string
	orders map[string]int64 // order id -> amount
}

func NewNoopGateway(secret string) *NoopGateway {
	if secret == "" {
		secret = "noop-secret"
	}
	return &NoopGateway{
		secret: secret,
		orders: make(map[string]int64),
	}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*adapter.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("order_noop_%d", g.seq)
	g.orders[id] = amount
	return &adapter.Order{ID: id, Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (g *NoopGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(g.Sign(orderID, paymentID)), []byte(signature))
}

// Sign produces the signature a real provider callback would carry. Tests use
// it to build valid verify requests.
func (g *NoopGateway) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
