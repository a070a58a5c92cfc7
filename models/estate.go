package models

import "time"

type Estate struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id" gorm:"size:36;index"`
	CreatedAt time.Time `json:"created_at"`
}

type Home struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name"`
	EstateID    string    `json:"estate_id" gorm:"size:36;index"`
	HomeownerID string    `json:"homeowner_id" gorm:"size:36;index"`
	CreatedAt   time.Time `json:"created_at"`
}

type Door struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	Name   string `json:"name"`
	HomeID string `json:"home_id" gorm:"size:36;index"`
	Status string `json:"status"` // online, offline
}
