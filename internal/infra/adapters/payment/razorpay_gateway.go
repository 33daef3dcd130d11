package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"learning-platform-core/internal/domain"
	"learning-platform-core/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

const defaultRazorpayBaseURL = "https://api.razorpay.com"

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay
// Orders REST API. Our models hold whole currency units; Razorpay wants the
// minor unit (paise for INR), so amounts are scaled by 100 at the wire.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay key id/secret empty")
	}
	if baseURL == "" {
		baseURL = defaultRazorpayBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*adapter.Order, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount %d", domain.ErrInvalidArgument, amount)
	}
	body, _ := json.Marshal(map[string]interface{}{
		"amount":   amount * 100,
		"currency": currency,
		"receipt":  receipt,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: orders http %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("razorpay orders http %d: %s %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
	}

	var out struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("razorpay order response missing id")
	}
	return &adapter.Order{
		ID:       out.ID,
		Amount:   out.Amount / 100,
		Currency: out.Currency,
		Receipt:  out.Receipt,
	}, nil
}

// VerifySignature recomputes HMAC-SHA256 over "orderID|paymentID" with the
// key secret and compares against the hex signature the client relayed from
// the checkout callback. Comparison is constant time.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
