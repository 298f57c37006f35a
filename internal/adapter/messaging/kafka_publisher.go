package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/rl1809/train-booking/internal/core/domain"
)

const EventReservationCreated = "reservation.created"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReservationCreated is the payload published after a reservation commits.
type ReservationCreated struct {
	Type        string    `json:"type"`
	BookingID   string    `json:"booking_id"`
	TrainID     int64     `json:"train_id"`
	UserID      int64     `json:"user_id"`
	NoOfSeats   int       `json:"no_of_seats"`
	SeatNumbers []int     `json:"seat_numbers"`
	CreatedAt   time.Time `json:"created_at"`
}

// KafkaPublisher emits reservation events keyed by train id, so events of
// one train stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishReservationCreated(ctx context.Context, r domain.Reservation) error {
	msg, err := reservationMessage(ctx, r)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", EventReservationCreated, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func reservationMessage(ctx context.Context, r domain.Reservation) (kafka.Message, error) {
	body, err := json.Marshal(ReservationCreated{
		Type:        EventReservationCreated,
		BookingID:   r.ID,
		TrainID:     r.TrainID,
		UserID:      r.AccountID,
		NoOfSeats:   r.SeatCount,
		SeatNumbers: r.SeatNumbers,
		CreatedAt:   r.CreatedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", EventReservationCreated, err)
	}

	carrier := headerCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	return kafka.Message{
		Key:     []byte(strconv.FormatInt(r.TrainID, 10)),
		Value:   body,
		Headers: carrier.headers,
	}, nil
}

// headerCarrier adapts kafka headers to the otel text map carrier.
type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range c.headers {
		if h.Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
