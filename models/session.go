package models

import "time"

// Visitor session lifecycle. Rejected and closed are terminal;
// completed is accepted as an alias of closed for reporting.
const (
	SessionPending   = "pending"
	SessionApproved  = "approved"
	SessionRejected  = "rejected"
	SessionClosed    = "closed"
	SessionCompleted = "completed"
)

type VisitorSession struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	QRID         string     `json:"qr_id" gorm:"column:qr_id;size:64;index"`
	HomeID       string     `json:"home_id" gorm:"size:36;index"`
	DoorID       string     `json:"door_id" gorm:"size:36;index"`
	HomeownerID  string     `json:"homeowner_id" gorm:"size:36;index"`
	VisitorLabel string     `json:"visitor_label" gorm:"size:120"`
	Status       string     `json:"status" gorm:"size:40"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
}

func (s *VisitorSession) Terminal() bool {
	return s.Status == SessionRejected || s.Status == SessionClosed
}
