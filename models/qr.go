package models

import (
	"strings"
	"time"
)

// Routing modes for a QR code's door list.
const (
	QRModeDirect   = "direct"
	QRModeSelector = "selector"
)

type QRCode struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	QRID      string    `json:"qr_id" gorm:"column:qr_id;uniqueIndex;size:64"`
	Plan      string    `json:"plan"` // single, estate
	HomeID    string    `json:"home_id" gorm:"size:36;index"`
	DoorsCSV  string    `json:"-" gorm:"column:doors_csv;type:text"`
	Mode      string    `json:"mode"`
	EstateID  string    `json:"estate_id" gorm:"size:36;index"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// DoorIDs splits the stored CSV door list, preserving order. Order
// matters: the first listed door is the default in direct mode.
func (q *QRCode) DoorIDs() []string {
	var ids []string
	for _, part := range strings.Split(q.DoorsCSV, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
