package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(url, "sk_test", 5*time.Second).WithBackoffs(time.Millisecond, time.Millisecond)
}

func TestClient_CreateIntentSendsMinorUnits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "intent-1", r.Header.Get("Idempotency-Key"))

		var body intentIn
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(11550), body.Amount)
		assert.Equal(t, "usd", body.Currency)

		json.NewEncoder(w).Encode(intentOut{
			ID:           "pi_123",
			ClientSecret: "pi_123_secret",
			Status:       StatusRequiresPaymentMethod,
			Amount:       body.Amount,
			Currency:     "USD",
		})
	}))
	defer server.Close()

	intent, err := newTestClient(server.URL).CreateIntent(context.Background(),
		decimal.RequireFromString("115.50"), "usd", "intent-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
	assert.True(t, intent.Matches(decimal.RequireFromString("115.5"), "usd"))
	assert.False(t, intent.Succeeded())
}

func TestClient_GetIntentNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetIntent(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(intentOut{ID: "pi_1", Status: StatusSucceeded, Amount: 2000, Currency: "usd"})
	}))
	defer server.Close()

	intent, err := newTestClient(server.URL).GetIntent(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.True(t, intent.Succeeded())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetIntent(context.Background(), "pi_1")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_CreateIntentRetryReusesKey(t *testing.T) {
	var mu sync.Mutex
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		attempt := len(keys)
		mu.Unlock()
		if attempt == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(intentOut{ID: "pi_9", Status: StatusRequiresPaymentMethod, Amount: 5500, Currency: "usd"})
	}))
	defer server.Close()

	intent, err := newTestClient(server.URL).CreateIntent(context.Background(),
		decimal.NewFromInt(55), "usd", "intent-abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "pi_9", intent.ID)
	assert.Equal(t, []string{"intent-abc", "intent-abc"}, keys)
}

func TestClient_RetryStopsWhenContextDone(t *testing.T) {
	client := NewClient("http://unused", "k", time.Second).WithBackoffs(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- client.RetryWithBackoff(ctx, func() error {
			calls++
			return &statusError{Code: http.StatusServiceUnavailable}
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry kept sleeping after cancellation")
	}
}

func TestClient_RetryExhausted(t *testing.T) {
	client := NewClient("http://unused", "k", time.Second).WithBackoffs(time.Millisecond)

	calls := 0
	err := client.RetryWithBackoff(context.Background(), func() error {
		calls++
		return &statusError{Code: http.StatusServiceUnavailable}
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Equal(t, 2, calls)
}

func TestClient_TransferInstructionIsKeyedByOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "order-77", r.Header.Get("Idempotency-Key"))
		var body transferIn
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(transferOut{
			Reference: "REF-77",
			IBAN:      "DE00123",
			Amount:    body.Amount,
			Currency:  body.Currency,
		})
	}))
	defer server.Close()

	instruction, err := newTestClient(server.URL).CreateTransferInstruction(context.Background(),
		77, decimal.NewFromInt(40), "eur")
	require.NoError(t, err)
	assert.Equal(t, "REF-77", instruction.Reference)
	assert.True(t, instruction.Amount.Equal(decimal.NewFromInt(40)))
}

func TestSandbox(t *testing.T) {
	ctx := context.Background()
	sandbox := NewSandbox(false)

	intent, err := sandbox.CreateIntent(ctx, decimal.NewFromInt(55), "USD", "quote-1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresPaymentMethod, intent.Status)
	assert.Equal(t, "usd", intent.Currency)

	again, err := sandbox.CreateIntent(ctx, decimal.NewFromInt(55), "usd", "quote-1", nil)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, again.ID)

	confirmed, err := sandbox.ConfirmIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.Succeeded())

	fetched, err := sandbox.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Succeeded())

	_, err = sandbox.GetIntent(ctx, "pi_unknown")
	assert.ErrorIs(t, err, ErrIntentNotFound)

	_, err = sandbox.CreateIntent(ctx, decimal.Zero, "usd", "quote-2", nil)
	assert.ErrorIs(t, err, ErrDeclined)

	first, err := sandbox.CreateTransferInstruction(ctx, 9, decimal.NewFromInt(40), "usd")
	require.NoError(t, err)
	second, err := sandbox.CreateTransferInstruction(ctx, 9, decimal.NewFromInt(40), "usd")
	require.NoError(t, err)
	assert.Equal(t, first.Reference, second.Reference)
}
