package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated           = "ORDER_CREATED"
	EventTypeOrderCompleted         = "ORDER_COMPLETED"
	EventTypeOrderStatusChanged     = "ORDER_STATUS_CHANGED"
	EventTypeContactMessageReceived = "CONTACT_MESSAGE_RECEIVED"
	EventTypeNewsletterSubscribed   = "NEWSLETTER_SUBSCRIBED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order row is persisted
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	CustomerID    int64           `json:"customer_id"`
	CustomerEmail string          `json:"customer_email"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Items         []OrderItemData `json:"items"`
}

// OrderCompletedEvent published when payment for an order is confirmed
type OrderCompletedEvent struct {
	BaseEvent
	OrderID         int64           `json:"order_id"`
	CustomerID      int64           `json:"customer_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
}

// OrderStatusChangedEvent published on admin status transitions
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    int64  `json:"order_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// ContactMessageReceivedEvent published when a visitor sends a message
type ContactMessageReceivedEvent struct {
	BaseEvent
	MessageID int64  `json:"message_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
}

// NewsletterSubscribedEvent published when an address subscribes
type NewsletterSubscribedEvent struct {
	BaseEvent
	Email string `json:"email"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ArtworkID int64           `json:"artwork_id"`
	Title     string          `json:"title"`
	Type      string          `json:"type"`
	PrintSize string          `json:"print_size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
