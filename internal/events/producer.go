package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"courseshop-be/internal/order"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const EventOrderCompleted = "order.completed"

// OrderCompleted is the message published once an order reaches completed.
type OrderCompleted struct {
	Event      string          `json:"event"`
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	CourseID   int64           `json:"course_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	PaymentID  string          `json:"payment_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// MessageWriter is the subset of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
}

var _ order.Publisher = (*Producer)(nil)

// flushInterval caps how long a completion waits in a partial batch.
const flushInterval = 10 * time.Millisecond

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: flushInterval,
		WriteTimeout: 5 * time.Second,
	}
	return &Producer{Writer: writer}
}

// PublishOrderCompleted streams the completion to Kafka keyed by order id.
func (p *Producer) PublishOrderCompleted(ctx context.Context, o *order.Order) error {
	msg := OrderCompleted{
		Event:      EventOrderCompleted,
		OrderID:    o.ID,
		UserID:     o.UserID,
		CourseID:   o.CourseID,
		TotalPrice: o.TotalPrice,
		OccurredAt: o.UpdatedAt,
	}
	if o.PaymentID != nil {
		msg.PaymentID = *o.PaymentID
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(o.ID, 10)),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish order %d: %w", o.ID, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// Noop drops events; used when Kafka is disabled.
type Noop struct{}

func (Noop) PublishOrderCompleted(context.Context, *order.Order) error { return nil }
