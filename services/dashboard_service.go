package services

import (
	"github.com/fitaccessng/qring-backend/models"
	"gorm.io/gorm"
)

type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// Overview aggregates a homeowner's live dashboard state: counters,
// recent activity, the waiting room and the latest transcript entries.
func (s *DashboardService) Overview(homeownerID string) (map[string]interface{}, error) {
	var sessions []models.VisitorSession
	err := s.db.Where("homeowner_id = ?", homeownerID).
		Order("started_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	var pending, approved []models.VisitorSession
	for _, sess := range sessions {
		switch sess.Status {
		case models.SessionPending:
			pending = append(pending, sess)
		case models.SessionApproved:
			approved = append(approved, sess)
		}
	}

	var latest []models.Message
	err = s.db.Model(&models.Message{}).
		Joins("JOIN visitor_sessions ON visitor_sessions.id = messages.session_id").
		Where("visitor_sessions.homeowner_id = ?", homeownerID).
		Order("messages.created_at DESC").
		Limit(5).
		Find(&latest).Error
	if err != nil {
		return nil, err
	}

	activity := make([]map[string]interface{}, 0, 10)
	start := 0
	if len(sessions) > 10 {
		start = len(sessions) - 10
	}
	for _, sess := range sessions[start:] {
		activity = append(activity, map[string]interface{}{
			"id":    sess.ID,
			"event": "Visitor at door " + sess.DoorID,
			"time":  sess.StartedAt,
			"state": sess.Status,
		})
	}

	waiting := make([]map[string]interface{}, 0, len(pending))
	for i, sess := range pending {
		if i == 10 {
			break
		}
		waiting = append(waiting, map[string]interface{}{
			"id":     sess.ID,
			"door":   sess.DoorID,
			"status": "Awaiting approval",
		})
	}

	messages := make([]map[string]interface{}, 0, len(latest))
	for _, m := range latest {
		messages = append(messages, map[string]interface{}{
			"id":   m.ID,
			"from": m.SenderType,
			"text": m.Body,
			"time": m.CreatedAt,
		})
	}

	var current map[string]interface{}
	if len(approved) > 0 {
		current = map[string]interface{}{
			"id":       approved[0].ID,
			"state":    approved[0].Status,
			"location": approved[0].DoorID,
		}
	}

	return map[string]interface{}{
		"metrics": map[string]interface{}{
			"activeVisitors":   len(approved),
			"pendingApprovals": len(pending),
			"callsToday":       len(approved),
			"unreadMessages":   len(latest),
		},
		"activity":    activity,
		"waitingRoom": waiting,
		"session":     current,
		"messages":    messages,
	}, nil
}
