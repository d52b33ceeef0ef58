package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Топики биллинговых событий.
const (
	TopicSubscriptionUpdated = "billing_subscription_updated"
	TopicPaymentFailed       = "billing_payment_failed"
)

// Producer публикует биллинговые события для остальных сервисов.
type Producer interface {
	PublishBillingEvent(ctx context.Context, topic string, ev *domain.BillingEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewProducer создает producer для отправки сообщений в Kafka.
func NewProducer(brokers []string, log *logger.Logger) Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		Async:        false,
	}

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}
}

// PublishBillingEvent сериализует событие и отправляет его в указанный топик.
// Ключ сообщения - идентификатор пользователя, чтобы события одного
// пользователя читались в порядке записи.
func (p *kafkaProducer) PublishBillingEvent(ctx context.Context, topic string, ev *domain.BillingEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorw("Failed to marshal billing event", "error", err, "topic", topic)
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(ev.UserID),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Errorw("Failed to publish billing event", "error", err, "topic", topic, "userID", ev.UserID)
		return err
	}

	p.log.Debugw("Billing event published", "topic", topic, "userID", ev.UserID, "eventType", ev.EventType)
	return nil
}

// Close закрывает соединение с Kafka.
func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// NoOpProducer заглушка, когда Kafka не сконфигурирована.
type NoOpProducer struct{}

func (NoOpProducer) PublishBillingEvent(ctx context.Context, topic string, ev *domain.BillingEvent) error {
	return nil
}

func (NoOpProducer) Close() error { return nil }
