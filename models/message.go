package models

import "time"

// Sender types recorded on a chat message. The durable value is always
// derived server-side from the session's homeowner id, never from the
// client's claim.
const (
	SenderHomeowner = "homeowner"
	SenderVisitor   = "visitor"
)

type Message struct {
	ID                string     `json:"id" gorm:"primaryKey;size:36"`
	SessionID         string     `json:"session_id" gorm:"size:36;index"`
	SenderType        string     `json:"sender_type" gorm:"size:20"`
	Body              string     `json:"body" gorm:"type:text"`
	ReadByHomeownerAt *time.Time `json:"read_by_homeowner_at" gorm:"index"`
	CreatedAt         time.Time  `json:"created_at"`
}
