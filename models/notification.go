package models

import "time"

type Notification struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	UserID    string     `json:"user_id" gorm:"size:36;index"`
	Kind      string     `json:"kind" gorm:"size:50"` // visitor.request, session.approve, ...
	Payload   string     `json:"payload" gorm:"type:text"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}
