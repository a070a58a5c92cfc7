package services

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/fitaccessng/qring-backend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationPublisher hands a notification to an external broker
// instead of writing it inline. Implemented by the kafka producer.
type NotificationPublisher interface {
	PublishNotification(userID, kind string, payload map[string]interface{}) error
}

type NotificationService struct {
	db        *gorm.DB
	publisher NotificationPublisher
}

// NewNotificationService builds the service. publisher may be nil, in
// which case Notify writes rows directly.
func NewNotificationService(db *gorm.DB, publisher NotificationPublisher) *NotificationService {
	return &NotificationService{db: db, publisher: publisher}
}

// Notify records a notification for the user. With a broker configured
// the write travels through the visitor-events topic and lands via the
// consumer group; otherwise it is written inline.
func (s *NotificationService) Notify(userID, kind string, payload map[string]interface{}) error {
	if s.publisher != nil {
		return s.publisher.PublishNotification(userID, kind, payload)
	}
	_, err := s.CreateRow(userID, kind, payload)
	return err
}

func (s *NotificationService) CreateRow(userID, kind string, payload map[string]interface{}) (*models.Notification, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	row := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Payload:   string(data),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *NotificationService) List(userID string) ([]models.Notification, error) {
	var rows []models.Notification
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(50).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *NotificationService) MarkRead(userID, notificationID string) (*models.Notification, error) {
	var row models.Notification
	err := s.db.Where("id = ? AND user_id = ?", notificationID, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	if row.ReadAt == nil {
		now := time.Now().UTC()
		row.ReadAt = &now
		if err := s.db.Save(&row).Error; err != nil {
			return nil, err
		}
	}
	return &row, nil
}

func (s *NotificationService) MarkAllRead(userID string) (int64, error) {
	now := time.Now().UTC()
	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", now)
	return result.RowsAffected, result.Error
}
