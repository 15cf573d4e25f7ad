package worker

import (
	"context"

	"food-delivery/internal/broker"
	"food-delivery/internal/history"
	"food-delivery/internal/models"
	"food-delivery/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Recorder stores status history entries
type Recorder interface {
	Record(ctx context.Context, entry *models.StatusHistoryEntry) (bool, error)
}

// MessageSource delivers Kafka messages to a handler until ctx is done
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// HistoryWorker turns lifecycle events into status history rows
type HistoryWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	recorder     Recorder
	logger       *zap.Logger
}

// NewHistoryWorker creates a new history worker
func NewHistoryWorker(consumer MessageSource, recorder Recorder) *HistoryWorker {
	w := &HistoryWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		recorder:     recorder,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	w.eventHandler.OnOrderStatusChanged(w.handleStatusChanged)
	w.eventHandler.OnDeliveryTimeUpdated(w.handleDeliveryTimeUpdated)
	return w
}

// Start starts the worker
func (w *HistoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting history worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker
func (w *HistoryWorker) Stop() error {
	w.logger.Info("Stopping history worker")
	return w.consumer.Close()
}

// HandleMessage processes one Kafka message
func (w *HistoryWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

func (w *HistoryWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return w.record(ctx, event.EventType, history.FromOrderPlaced(event))
}

func (w *HistoryWorker) handleStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return w.record(ctx, event.EventType, history.FromStatusChanged(event))
}

// Delivery time changes do not move the status, they are only counted.
func (w *HistoryWorker) handleDeliveryTimeUpdated(ctx context.Context, event *models.DeliveryTimeUpdatedEvent) error {
	util.HistoryEventsTotal.WithLabelValues(event.EventType).Inc()
	w.logger.Debug("Delivery time updated",
		zap.String("order_id", event.OrderID),
		zap.Time("estimated_delivery_time", event.EstimatedDeliveryTime))
	return nil
}

func (w *HistoryWorker) record(ctx context.Context, eventType string, entry *models.StatusHistoryEntry) error {
	ctx, span := util.StartSpan(ctx, "HistoryWorker.record")
	defer span.End()

	inserted, err := w.recorder.Record(ctx, entry)
	if err != nil {
		w.logger.Error("Failed to record status history",
			zap.String("event_id", entry.EventID),
			zap.String("order_id", entry.OrderID),
			zap.Error(err))
		return err
	}

	util.HistoryEventsTotal.WithLabelValues(eventType).Inc()
	if !inserted {
		w.logger.Debug("Duplicate event skipped", zap.String("event_id", entry.EventID))
		return nil
	}

	w.logger.Info("Status history recorded",
		zap.String("order_id", entry.OrderID),
		zap.String("from_status", entry.FromStatus),
		zap.String("to_status", entry.ToStatus))
	return nil
}
