package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
)

// Envelope is the wire shape of a notification event. Keyed by user so all
// of one user's events land on the same partition, preserving their order.
type Envelope struct {
	UserID    uint      `json:"user_id"`
	EventKind string    `json:"event_kind"`
	Payload   any       `json:"payload"`
	SentAt    time.Time `json:"sent_at"`
}

// KafkaNotifier publishes events to a Kafka topic with a sync producer.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier connects a sync producer to the given brokers.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start sarama producer: %w", err)
	}
	return &KafkaNotifier{producer: producer, topic: topic}, nil
}

// NewKafkaNotifierWithProducer wraps an existing producer. Tests inject
// sarama's mock producer through this.
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

// Notify implements Notifier.
func (k *KafkaNotifier) Notify(_ context.Context, userID uint, eventKind string, payload any) error {
	bytes, err := json.Marshal(Envelope{
		UserID:    userID,
		EventKind: eventKind,
		Payload:   payload,
		SentAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(userID), 10)),
		Value: sarama.ByteEncoder(bytes),
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close shuts the underlying producer down.
func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}
