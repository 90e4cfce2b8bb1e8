package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sandbox is an in-process gateway for development and tests. With
// autoConfirm set, new intents are created already succeeded.
type Sandbox struct {
	mu          sync.Mutex
	autoConfirm bool
	intents     map[string]*Intent
	byKey       map[string]string
	transfers   map[int64]*TransferInstruction
}

func NewSandbox(autoConfirm bool) *Sandbox {
	return &Sandbox{
		autoConfirm: autoConfirm,
		intents:     make(map[string]*Intent),
		byKey:       make(map[string]string),
		transfers:   make(map[int64]*TransferInstruction),
	}
}

func (s *Sandbox) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string, metadata map[string]string) (*Intent, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[idempotencyKey]; ok && idempotencyKey != "" {
		copied := *s.intents[id]
		return &copied, nil
	}

	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	status := StatusRequiresPaymentMethod
	if s.autoConfirm {
		status = StatusSucceeded
	}
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString()[:8],
		Status:       status,
		Amount:       amount.Round(2),
		Currency:     strings.ToLower(currency),
		Metadata:     metadata,
	}
	s.intents[id] = intent
	if idempotencyKey != "" {
		s.byKey[idempotencyKey] = id
	}

	copied := *intent
	return &copied, nil
}

func (s *Sandbox) GetIntent(ctx context.Context, id string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	copied := *intent
	return &copied, nil
}

// ConfirmIntent plays the buyer paying an intent, the step the processor's
// hosted card form performs in production
func (s *Sandbox) ConfirmIntent(ctx context.Context, id string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	if intent.Status == StatusCanceled {
		return nil, fmt.Errorf("%w: intent %s was canceled", ErrDeclined, id)
	}
	intent.Status = StatusSucceeded
	copied := *intent
	return &copied, nil
}

func (s *Sandbox) CreateTransferInstruction(ctx context.Context, orderID int64, amount decimal.Decimal, currency string) (*TransferInstruction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.transfers[orderID]; ok {
		copied := *existing
		return &copied, nil
	}

	instruction := &TransferInstruction{
		Reference:   fmt.Sprintf("GAL-%06d", orderID),
		AccountName: "Gallery Sandbox",
		IBAN:        "GB00SAND00000000000000",
		BIC:         "SANDGB00",
		Amount:      amount.Round(2),
		Currency:    strings.ToLower(currency),
	}
	s.transfers[orderID] = instruction

	copied := *instruction
	return &copied, nil
}
