package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"food-delivery/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte("order-1"), Value: data}
}

func TestEventHandlerRoutesStatusChanged(t *testing.T) {
	handler := NewEventHandler()

	var got *models.OrderStatusChangedEvent
	handler.OnOrderStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		got = e
		return nil
	})

	event := models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: time.Now().UTC(),
		},
		OrderID:    "order-1",
		FromStatus: models.StatusPlaced,
		ToStatus:   models.StatusPreparing,
	}

	require.NoError(t, handler.HandleMessage(context.Background(), message(t, event)))
	require.NotNil(t, got)
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, models.StatusPreparing, got.ToStatus)
}

func TestEventHandlerRoutesOrderPlaced(t *testing.T) {
	handler := NewEventHandler()

	called := false
	handler.OnOrderPlaced(func(ctx context.Context, e *models.OrderPlacedEvent) error {
		called = true
		assert.Equal(t, models.OrderTypeTakeaway, e.OrderType)
		return nil
	})

	event := models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeOrderPlaced},
		OrderID:   "order-1",
		OrderType: models.OrderTypeTakeaway,
	}

	require.NoError(t, handler.HandleMessage(context.Background(), message(t, event)))
	assert.True(t, called)
}

func TestEventHandlerIgnoresUnknownAndUnregistered(t *testing.T) {
	handler := NewEventHandler()

	unknown := models.BaseEvent{EventID: "evt-3", EventType: "SOMETHING_ELSE"}
	assert.NoError(t, handler.HandleMessage(context.Background(), message(t, unknown)))

	unregistered := models.BaseEvent{EventID: "evt-4", EventType: models.EventTypeDeliveryTimeUpdated}
	assert.NoError(t, handler.HandleMessage(context.Background(), message(t, unregistered)))
}

func TestEventHandlerRejectsMalformedPayload(t *testing.T) {
	handler := NewEventHandler()

	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)
}

func TestOrderKey(t *testing.T) {
	assert.Equal(t, "order-123-abc", orderKey("order-123-abc"))
}
