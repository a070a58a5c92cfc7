package kafka

import (
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// VisitorEvent is the broker-side record of a session lifecycle event.
// UserID is the notification target (the homeowner); Kind matches the
// notification kinds ("visitor.request", "session.approve", ...).
type VisitorEvent struct {
	Kind      string                 `json:"kind"`
	UserID    string                 `json:"user_id"`
	SessionID string                 `json:"session_id"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"`
}

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string, config *sarama.Config) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{producer: producer, topic: topic}, nil
}

func (p *Producer) SendEvent(key string, event VisitorEvent) error {
	jsonValue, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(jsonValue),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		log.Printf("Failed to send event: %v", err)
		return err
	}

	log.Printf("Event sent to partition %d at offset %d", partition, offset)
	return nil
}

// PublishNotification satisfies services.NotificationPublisher: the
// notification row is written by the consumer group on the other side
// of the topic. Keyed by the target user so one user's notifications
// stay ordered.
func (p *Producer) PublishNotification(userID, kind string, payload map[string]interface{}) error {
	sessionID, _ := payload["sessionId"].(string)
	return p.SendEvent(userID, VisitorEvent{
		Kind:      kind,
		UserID:    userID,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	})
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
