package models

import "time"

const (
	PlanFree           = "free"
	SubscriptionActive = "active"
)

type Subscription struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	UserID    string     `json:"user_id" gorm:"size:36;index"`
	Plan      string     `json:"plan" gorm:"size:40"`
	Status    string     `json:"status" gorm:"size:20"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
	CreatedAt time.Time  `json:"created_at"`
}
