package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gallery-service/internal/models"
	"gallery-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events. A publisher without a
// producer drops events, which is how the service runs with Kafka disabled.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// NewBaseEvent stamps a fresh event id and time
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func (ep *EventPublisher) publish(ctx context.Context, key string, event interface{}) error {
	if ep == nil || ep.producer == nil {
		return nil
	}
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.publish(ctx, fmt.Sprintf("order-%d", event.OrderID), event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.publish(ctx, fmt.Sprintf("order-%d", event.OrderID), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.publish(ctx, fmt.Sprintf("order-%d", event.OrderID), event)
}

// PublishContactMessageReceived publishes ContactMessageReceived event
func (ep *EventPublisher) PublishContactMessageReceived(ctx context.Context, event *models.ContactMessageReceivedEvent) error {
	return ep.publish(ctx, fmt.Sprintf("message-%d", event.MessageID), event)
}

// PublishNewsletterSubscribed publishes NewsletterSubscribed event
func (ep *EventPublisher) PublishNewsletterSubscribed(ctx context.Context, event *models.NewsletterSubscribedEvent) error {
	return ep.publish(ctx, "newsletter-"+event.Email, event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onOrderCreated           func(context.Context, *models.OrderCreatedEvent) error
	onOrderCompleted         func(context.Context, *models.OrderCompletedEvent) error
	onOrderStatusChanged     func(context.Context, *models.OrderStatusChangedEvent) error
	onContactMessageReceived func(context.Context, *models.ContactMessageReceivedEvent) error
	onNewsletterSubscribed   func(context.Context, *models.NewsletterSubscribedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnOrderCompleted registers a handler for OrderCompleted events
func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// OnOrderStatusChanged registers a handler for OrderStatusChanged events
func (eh *EventHandler) OnOrderStatusChanged(handler func(context.Context, *models.OrderStatusChangedEvent) error) {
	eh.onOrderStatusChanged = handler
}

// OnContactMessageReceived registers a handler for ContactMessageReceived events
func (eh *EventHandler) OnContactMessageReceived(handler func(context.Context, *models.ContactMessageReceivedEvent) error) {
	eh.onContactMessageReceived = handler
}

// OnNewsletterSubscribed registers a handler for NewsletterSubscribed events
func (eh *EventHandler) OnNewsletterSubscribed(handler func(context.Context, *models.NewsletterSubscribedEvent) error) {
	eh.onNewsletterSubscribed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID),
	)

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		return dispatch(ctx, msg.Value, eh.onOrderCreated)
	case models.EventTypeOrderCompleted:
		return dispatch(ctx, msg.Value, eh.onOrderCompleted)
	case models.EventTypeOrderStatusChanged:
		return dispatch(ctx, msg.Value, eh.onOrderStatusChanged)
	case models.EventTypeContactMessageReceived:
		return dispatch(ctx, msg.Value, eh.onContactMessageReceived)
	case models.EventTypeNewsletterSubscribed:
		return dispatch(ctx, msg.Value, eh.onNewsletterSubscribed)
	default:
		logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}

func dispatch[T any](ctx context.Context, data []byte, handler func(context.Context, *T) error) error {
	if handler == nil {
		return nil
	}
	var event T
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", event, err)
	}
	return handler(ctx, &event)
}
