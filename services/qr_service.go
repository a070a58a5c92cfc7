package services

import (
	"errors"

	"github.com/fitaccessng/qring-backend/models"
	"gorm.io/gorm"
)

var (
	ErrQRNotFound          = errors.New("QR not found or inactive")
	ErrSubscriptionExpired = errors.New("estate subscription expired, QR codes are inactive")
)

type DoorOption struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	HomeID        string `json:"homeId"`
	HomeName      string `json:"homeName"`
	HomeownerID   string `json:"homeownerId"`
	HomeownerName string `json:"homeownerName"`
}

type QRResolution struct {
	QRID        string       `json:"qr_id"`
	Plan        string       `json:"plan"`
	HomeID      string       `json:"home_id"`
	EstateID    string       `json:"estate_id"`
	Mode        string       `json:"mode"`
	Active      bool         `json:"active"`
	Doors       []string     `json:"doors"`
	DoorOptions []DoorOption `json:"doorOptions"`
}

type QRService struct {
	db       *gorm.DB
	payments *PaymentService
}

func NewQRService(db *gorm.DB, payments *PaymentService) *QRService {
	return &QRService{db: db, payments: payments}
}

// Resolve validates a scanned code and returns its door bindings.
//
// A code under an estate whose owner's paid subscription has lapsed is
// handled with a cascading deactivation: every active code of that
// estate is flagged inactive inside one transaction, and the current
// call fails with ErrSubscriptionExpired. A retried scan then sees a
// consistently inactive code (ErrQRNotFound), not a second cascade.
func (s *QRService) Resolve(qrID string) (*QRResolution, error) {
	var qr models.QRCode
	err := s.db.Where("qr_id = ?", qrID).First(&qr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQRNotFound
	}
	if err != nil {
		return nil, err
	}
	if !qr.Active {
		return nil, ErrQRNotFound
	}

	if qr.EstateID != "" {
		expired, err := s.cascadeIfExpired(qr.EstateID)
		if err != nil {
			return nil, err
		}
		if expired {
			return nil, ErrSubscriptionExpired
		}
	}

	doorIDs := qr.DoorIDs()
	options, err := s.doorOptions(doorIDs)
	if err != nil {
		return nil, err
	}

	doors := doorIDs
	if len(options) > 0 {
		doors = make([]string, 0, len(options))
		for _, opt := range options {
			doors = append(doors, opt.ID)
		}
	}

	return &QRResolution{
		QRID:        qr.QRID,
		Plan:        qr.Plan,
		HomeID:      qr.HomeID,
		EstateID:    qr.EstateID,
		Mode:        qr.Mode,
		Active:      qr.Active,
		Doors:       doors,
		DoorOptions: options,
	}, nil
}

// cascadeIfExpired checks the estate owner's subscription and, when
// lapsed, deactivates all of the estate's active codes. The check and
// the bulk write share one transaction so concurrent resolutions of
// the same estate cannot interleave a double cascade.
func (s *QRService) cascadeIfExpired(estateID string) (bool, error) {
	expired := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var estate models.Estate
		if err := tx.First(&estate, "id = ?", estateID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		lapsed, err := s.payments.IsPaidSubscriptionExpired(tx, estate.OwnerID)
		if err != nil {
			return err
		}
		if !lapsed {
			return nil
		}
		expired = true
		return tx.Model(&models.QRCode{}).
			Where("estate_id = ? AND active = ?", estateID, true).
			Update("active", false).Error
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}

// doorOptions resolves per-door display metadata in the QR's listed
// order, skipping doors that no longer exist.
func (s *QRService) doorOptions(doorIDs []string) ([]DoorOption, error) {
	if len(doorIDs) == 0 {
		return nil, nil
	}

	type row struct {
		models.Door
		HomeName      string
		HomeownerID   string
		HomeownerName string
	}
	var rows []row
	err := s.db.Table("doors").
		Select("doors.*, homes.name AS home_name, homes.homeowner_id AS homeowner_id, users.full_name AS homeowner_name").
		Joins("LEFT JOIN homes ON homes.id = doors.home_id").
		Joins("LEFT JOIN users ON users.id = homes.homeowner_id").
		Where("doors.id IN ?", doorIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	index := make(map[string]row, len(rows))
	for _, r := range rows {
		index[r.Door.ID] = r
	}

	options := make([]DoorOption, 0, len(doorIDs))
	for _, id := range doorIDs {
		r, ok := index[id]
		if !ok {
			continue
		}
		options = append(options, DoorOption{
			ID:            r.Door.ID,
			Name:          r.Door.Name,
			HomeID:        r.Door.HomeID,
			HomeName:      r.HomeName,
			HomeownerID:   r.HomeownerID,
			HomeownerName: r.HomeownerName,
		})
	}
	return options, nil
}
