package worker

import (
	"context"

	"gallery-service/internal/broker"
	"gallery-service/internal/models"
	"gallery-service/internal/util"

	"go.uber.org/zap"
)

// Notifier delivers notifications derived from gallery events
type Notifier interface {
	OrderPlaced(ctx context.Context, event *models.OrderCreatedEvent) error
	OrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	OrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	ContactMessage(ctx context.Context, event *models.ContactMessageReceivedEvent) error
	NewsletterWelcome(ctx context.Context, event *models.NewsletterSubscribedEvent) error
}

// NotificationWorker consumes gallery events and forwards them to a Notifier
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier Notifier) *NotificationWorker {
	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: NewEventHandler(notifier),
	}
}

// NewEventHandler registers notifier callbacks on a broker event handler
func NewEventHandler(notifier Notifier) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(notifier.OrderPlaced)
	eventHandler.OnOrderCompleted(notifier.OrderCompleted)
	eventHandler.OnOrderStatusChanged(notifier.OrderStatusChanged)
	eventHandler.OnContactMessageReceived(notifier.ContactMessage)
	eventHandler.OnNewsletterSubscribed(notifier.NewsletterWelcome)
	return eventHandler
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	util.GetLogger().Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	util.GetLogger().Info("Stopping notification worker")
	return w.consumer.Close()
}

// LogNotifier writes notifications to the log instead of sending mail
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

func (n *LogNotifier) OrderPlaced(ctx context.Context, event *models.OrderCreatedEvent) error {
	n.logger.Info("Order confirmation",
		zap.Int64("order_id", event.OrderID),
		zap.String("to", event.CustomerEmail),
		zap.String("payment_method", event.PaymentMethod),
		zap.String("total", event.TotalAmount.StringFixed(2)),
		zap.String("currency", event.Currency),
		zap.Int("items", len(event.Items)),
	)
	return nil
}

func (n *LogNotifier) OrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	n.logger.Info("Payment received",
		zap.Int64("order_id", event.OrderID),
		zap.String("total", event.TotalAmount.StringFixed(2)),
	)
	return nil
}

func (n *LogNotifier) OrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	n.logger.Info("Order status update",
		zap.Int64("order_id", event.OrderID),
		zap.String("from", event.FromStatus),
		zap.String("to", event.ToStatus),
	)
	return nil
}

func (n *LogNotifier) ContactMessage(ctx context.Context, event *models.ContactMessageReceivedEvent) error {
	n.logger.Info("New contact message",
		zap.Int64("message_id", event.MessageID),
		zap.String("from", event.Email),
		zap.String("subject", event.Subject),
	)
	return nil
}

func (n *LogNotifier) NewsletterWelcome(ctx context.Context, event *models.NewsletterSubscribedEvent) error {
	n.logger.Info("Newsletter welcome", zap.String("to", event.Email))
	return nil
}
