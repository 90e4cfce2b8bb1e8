package worker

import (
	"context"
	"encoding/json"
	"testing"

	"gallery-service/internal/broker"
	"gallery-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingNotifier struct {
	LogNotifier
	calls []string
}

func (r *recordingNotifier) OrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	r.calls = append(r.calls, event.ToStatus)
	return nil
}

func TestEventHandlerForwardsToNotifier(t *testing.T) {
	notifier := &recordingNotifier{LogNotifier: *NewLogNotifier(zap.NewNop())}
	handler := NewEventHandler(notifier)

	data, err := json.Marshal(models.OrderStatusChangedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:    7,
		FromStatus: models.OrderStatusPending,
		ToStatus:   models.OrderStatusCancelled,
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleMessage(context.Background(), kafka.Message{Value: data}))
	assert.Equal(t, []string{models.OrderStatusCancelled}, notifier.calls)
}

func TestLogNotifierWritesStructuredEntries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	notifier := NewLogNotifier(zap.New(core))

	err := notifier.ContactMessage(context.Background(), &models.ContactMessageReceivedEvent{
		MessageID: 3,
		Email:     "visitor@example.com",
		Subject:   "Commission",
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("New contact message").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "visitor@example.com", entries[0].ContextMap()["from"])
}
