package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

const (
	EventOrderCommitted = "order.committed"
	EventOrderRejected  = "order.rejected"
	EventLowStock       = "stock.low"
)

// Event is the wire format consumed by the notification component. Consumers
// deduplicate on ID; emission is at-least-once.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id,omitempty"`
	ProductID  string    `json:"product_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// messageWriter abstracts kafka.Writer for testability.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaNotifier struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaNotifier creates a notifier publishing to a Kafka topic. brokers
// can be a comma-separated list of host:port.
func NewKafkaNotifier(brokers, topic string, logger *zap.Logger) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaNotifier{writer: w, logger: logger}
}

func newKafkaNotifierWithWriter(w messageWriter, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: w, logger: logger}
}

// Close flushes and closes the underlying writer when it supports closing.
func (n *KafkaNotifier) Close() error {
	if c, ok := n.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (n *KafkaNotifier) OrderSettled(ctx context.Context, order domain.Order) error {
	eventType := EventOrderCommitted
	if order.Status == domain.OrderStatusRejected {
		eventType = EventOrderRejected
	}
	event := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OrderID:    order.ID,
		Status:     string(order.Status),
		Reason:     order.Reason,
		OccurredAt: time.Now(),
	}
	return n.emit(ctx, order.ID, event)
}

func (n *KafkaNotifier) LowStock(ctx context.Context, product domain.Product) error {
	event := Event{
		ID:         uuid.New().String(),
		Type:       EventLowStock,
		ProductID:  product.ID,
		Quantity:   product.Quantity,
		OccurredAt: time.Now(),
	}
	return n.emit(ctx, product.ID, event)
}

func (n *KafkaNotifier) emit(ctx context.Context, key string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}

	n.logger.Debug("event published",
		zap.String("type", event.Type),
		zap.String("key", key))
	return nil
}

// LogNotifier writes events to the log only, for deployments without a
// broker configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) OrderSettled(_ context.Context, order domain.Order) error {
	n.logger.Info("order settled",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("reason", order.Reason))
	return nil
}

func (n *LogNotifier) LowStock(_ context.Context, product domain.Product) error {
	n.logger.Warn("low stock",
		zap.String("product_id", product.ID),
		zap.Int("quantity", product.Quantity),
		zap.Int("threshold", product.LowStockThreshold))
	return nil
}
