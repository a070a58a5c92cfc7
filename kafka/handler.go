package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"
	"github.com/fitaccessng/qring-backend/models"
)

// NotificationSink turns consumed visitor events into notification
// rows. Satisfied by services.NotificationService.
type NotificationSink interface {
	CreateRow(userID, kind string, payload map[string]interface{}) (*models.Notification, error)
}

type NotificationHandler struct {
	sink NotificationSink
}

func NewNotificationHandler(sink NotificationSink) *NotificationHandler {
	return &NotificationHandler{sink: sink}
}

func (h *NotificationHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event VisitorEvent

	if err := json.Unmarshal(message.Value, &event); err != nil {
		log.Printf("Failed to unmarshal event: %v", err)
		return err
	}

	if event.UserID == "" || event.Kind == "" {
		log.Printf("Skipping malformed event at offset %d", message.Offset)
		return nil
	}

	_, err := h.sink.CreateRow(event.UserID, event.Kind, event.Payload)
	return err
}
