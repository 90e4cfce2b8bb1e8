package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gallery-service/internal/pricing"
	"gallery-service/internal/util"

	"github.com/shopspring/decimal"
)

// Client talks to the processor's REST API. Amounts travel as integer minor units.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	backoffs   []time.Duration
}

type intentIn struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type intentOut struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
}

type transferIn struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type transferOut struct {
	Reference   string `json:"reference"`
	AccountName string `json:"account_name"`
	IBAN        string `json:"iban"`
	BIC         string `json:"bic"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// statusError is a non-2xx processor response
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("processor returned status %d, body: %s", e.Code, e.Body)
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		backoffs: []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second},
	}
}

// WithBackoffs replaces the retry schedule
func (c *Client) WithBackoffs(backoffs ...time.Duration) *Client {
	c.backoffs = backoffs
	return c
}

// CreateIntent creates a payment intent for amount in currency. Retries reuse
// idempotencyKey so the processor never opens a second intent.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string, metadata map[string]string) (*Intent, error) {
	body := intentIn{
		Amount:   pricing.ToMinorUnits(amount),
		Currency: currency,
		Metadata: metadata,
	}

	var out intentOut
	err := c.observe(ctx, "create_intent", func() error {
		return c.do(ctx, http.MethodPost, "/v1/payment_intents", idempotencyKey, body, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return out.toIntent(), nil
}

// GetIntent retrieves an intent by id
func (c *Client) GetIntent(ctx context.Context, id string) (*Intent, error) {
	var out intentOut
	err := c.observe(ctx, "get_intent", func() error {
		return c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), "", nil, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent %s: %w", id, err)
	}
	return out.toIntent(), nil
}

// CreateTransferInstruction requests bank transfer details for an order
func (c *Client) CreateTransferInstruction(ctx context.Context, orderID int64, amount decimal.Decimal, currency string) (*TransferInstruction, error) {
	reference := fmt.Sprintf("order-%d", orderID)
	body := transferIn{
		Reference: reference,
		Amount:    pricing.ToMinorUnits(amount),
		Currency:  currency,
	}

	var out transferOut
	err := c.observe(ctx, "create_transfer", func() error {
		return c.do(ctx, http.MethodPost, "/v1/transfer_instructions", reference, body, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer instruction for order %d: %w", orderID, err)
	}
	return &TransferInstruction{
		Reference:   out.Reference,
		AccountName: out.AccountName,
		IBAN:        out.IBAN,
		BIC:         out.BIC,
		Amount:      pricing.FromMinorUnits(out.Amount),
		Currency:    out.Currency,
	}, nil
}

func (o *intentOut) toIntent() *Intent {
	return &Intent{
		ID:           o.ID,
		ClientSecret: o.ClientSecret,
		Status:       o.Status,
		Amount:       pricing.FromMinorUnits(o.Amount),
		Currency:     strings.ToLower(o.Currency),
		Metadata:     o.Metadata,
	}
}

func (c *Client) observe(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	defer func() {
		util.PaymentGatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()
	return c.RetryWithBackoff(ctx, fn)
}

// RetryWithBackoff retries fn on transport errors and 5xx responses until
// the schedule runs out or ctx is done
func (c *Client) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i <= len(c.backoffs); i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		if i < len(c.backoffs) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoffs[i]):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", len(c.backoffs)+1, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return !errors.Is(err, ErrIntentNotFound) && !errors.Is(err, ErrDeclined)
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrIntentNotFound
	case resp.StatusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrDeclined, string(body))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &statusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
