package models

import "time"

type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"` // homeowner, estate_admin, admin
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
