// Package payment adapts the external card processor and bank transfer
// instructions behind a single Gateway interface.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Intent statuses reported by the processor
const (
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusProcessing            = "processing"
	StatusSucceeded             = "succeeded"
	StatusCanceled              = "canceled"
)

var (
	// ErrIntentNotFound is returned when the processor has no such intent
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrDeclined is returned when the processor refuses an operation
	ErrDeclined = errors.New("payment declined")
)

// Intent is the processor's view of a payment
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       decimal.Decimal
	Currency     string
	Metadata     map[string]string
}

// Succeeded reports whether funds were captured
func (i *Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

// Matches reports whether the intent covers exactly amount in currency
func (i *Intent) Matches(amount decimal.Decimal, currency string) bool {
	return i.Amount.Equal(amount) && i.Currency == currency
}

// TransferInstruction tells a buyer how to pay by bank transfer
type TransferInstruction struct {
	Reference   string
	AccountName string
	IBAN        string
	BIC         string
	Amount      decimal.Decimal
	Currency    string
}

// Gateway is the payment processor collaborator
type Gateway interface {
	// CreateIntent returns the same intent when idempotencyKey is repeated
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	// CreateTransferInstruction is idempotent per orderID
	CreateTransferInstruction(ctx context.Context, orderID int64, amount decimal.Decimal, currency string) (*TransferInstruction, error)
}
