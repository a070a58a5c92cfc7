package services

import (
	"errors"
	"time"

	"github.com/fitaccessng/qring-backend/models"
	"gorm.io/gorm"
)

// Paid subscriptions run 30 days from activation when no explicit end
// date was recorded.
const defaultSubscriptionTerm = 30 * 24 * time.Hour

type PaymentService struct {
	db *gorm.DB
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{db: db}
}

func (s *PaymentService) UserSubscription(tx *gorm.DB, userID string) (*models.Subscription, error) {
	if tx == nil {
		tx = s.db
	}
	var row models.Subscription
	err := tx.Where("user_id = ?", userID).Order("starts_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// IsPaidSubscriptionExpired reports whether the user holds a paid plan
// that has lapsed. Users with no subscription, or on the free plan,
// never expire.
func (s *PaymentService) IsPaidSubscriptionExpired(tx *gorm.DB, userID string) (bool, error) {
	row, err := s.UserSubscription(tx, userID)
	if err != nil {
		return false, err
	}
	if row == nil || row.Plan == models.PlanFree {
		return false, nil
	}
	if row.Status != models.SubscriptionActive {
		return true, nil
	}
	expiry := row.EndsAt
	if expiry == nil {
		e := row.StartsAt.Add(defaultSubscriptionTerm)
		expiry = &e
	}
	return time.Now().UTC().After(*expiry), nil
}
