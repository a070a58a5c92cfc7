package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// EventInterceptor stamps every produced visitor event with an origin
// header and publish time for downstream consumers.
type EventInterceptor struct {
}

func (i *EventInterceptor) OnSend(msg *sarama.ProducerMessage) {
	msg.Headers = append(msg.Headers,
		sarama.RecordHeader{
			Key:   []byte("origin"),
			Value: []byte("qring-gateway"),
		},
		sarama.RecordHeader{
			Key:   []byte("published-at"),
			Value: []byte(time.Now().UTC().Format(time.RFC3339)),
		},
	)
}

func NewEventInterceptor() *EventInterceptor {
	return &EventInterceptor{}
}
