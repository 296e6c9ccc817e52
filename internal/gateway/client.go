// Package gateway abstracts the external payment gateway: order creation and
// payment-signature verification.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrOrderCreation is returned when the gateway rejects or fails an order
// request. Transient: the caller may retry with a new idempotency key.
var ErrOrderCreation = errors.New("gateway order creation failed")

// Order is the handle the gateway issues for one installment's payment
// attempt.
type Order struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Client is the contract the split engine holds against the payment gateway.
//
// CreateOrder must run under a bounded timeout; a transport error or timeout
// surfaces as ErrOrderCreation, never as an indefinitely pending call. The
// engine itself never retries order creation; retrying with a fresh
// idempotency key is safe, so that decision belongs to the caller.
type Client interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string) (*Order, error)

	// VerifySignature checks that a client-reported payment completion
	// genuinely originated from the gateway, using a locally computed
	// authenticated value compared in constant time.
	VerifySignature(orderID, paymentRef, signature string) bool
}

// HTTPClient talks to the gateway's REST API with key-pair credentials.
type HTTPClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	logger    *slog.Logger
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a gateway client. timeout bounds every order-creation
// call end to end.
func NewHTTPClient(baseURL, keyID, keySecret string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.With(slog.String("component", "gateway")),
	}
}

type createOrderRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Receipt  string  `json:"receipt"`
}

// CreateOrder asks the gateway to open an order for one installment. receipt
// doubles as the idempotency key so a retried request cannot open a second
// order for the same attempt.
func (c *HTTPClient) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (*Order, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrOrderCreation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrOrderCreation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", receipt)
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("order creation failed",
			slog.String("receipt", receipt),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrOrderCreation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("order creation rejected",
			slog.String("receipt", receipt),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d: %s", ErrOrderCreation, resp.StatusCode, snippet)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrOrderCreation, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: response missing order id", ErrOrderCreation)
	}

	c.logger.Debug("order created",
		slog.String("order_id", order.ID),
		slog.Float64("amount", amount),
		slog.String("currency", currency),
	)
	return &order, nil
}

// VerifySignature checks the signature over (orderID, paymentRef) against the
// key secret. Verification is local; no network call is involved, so it can
// never be left pending.
func (c *HTTPClient) VerifySignature(orderID, paymentRef, signature string) bool {
	return VerifySig(c.keySecret, orderID, paymentRef, signature)
}
