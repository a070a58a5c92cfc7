package services

import (
	"errors"
	"time"

	"github.com/fitaccessng/qring-backend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoHomeowner       = errors.New("door has no owning home or homeowner")
	ErrInvalidTransition = errors.New("invalid session status transition")
)

// SessionService owns the visitor session lifecycle:
// pending -> approved | rejected -> closed. Rejected and closed are
// terminal; approved sessions may still be closed when the call ends.
type SessionService struct {
	db *gorm.DB
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db}
}

// Create resolves the selected door to its home and homeowner and
// opens a pending session. The door and home bindings never change
// after this point. Fails when the ownership chain is broken.
func (s *SessionService) Create(qrID, qrHomeID, doorID, visitorLabel string) (*models.VisitorSession, error) {
	homeID := qrHomeID
	var door models.Door
	err := s.db.First(&door, "id = ?", doorID).Error
	if err == nil && door.HomeID != "" {
		homeID = door.HomeID
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var home models.Home
	err = s.db.First(&home, "id = ?", homeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoHomeowner
	}
	if err != nil {
		return nil, err
	}
	if home.HomeownerID == "" {
		return nil, ErrNoHomeowner
	}

	if visitorLabel == "" {
		visitorLabel = "Visitor"
	}
	session := models.VisitorSession{
		ID:           uuid.NewString(),
		QRID:         qrID,
		HomeID:       home.ID,
		DoorID:       doorID,
		HomeownerID:  home.HomeownerID,
		VisitorLabel: visitorLabel,
		Status:       models.SessionPending,
		StartedAt:    time.Now().UTC(),
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) Get(sessionID string) (*models.VisitorSession, error) {
	var session models.VisitorSession
	err := s.db.First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Transition applies a status change. Allowed moves:
// pending->approved, pending->rejected, pending->closed,
// approved->closed. Re-closing a closed session is a no-op. Terminal
// statuses stamp EndedAt exactly once. completed is an alias of closed.
func (s *SessionService) Transition(sessionID, target string) (*models.VisitorSession, error) {
	if target == models.SessionCompleted {
		target = models.SessionClosed
	}

	session, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionClosed && target == models.SessionClosed {
		return session, nil
	}
	if !transitionAllowed(session.Status, target) {
		return nil, ErrInvalidTransition
	}

	session.Status = target
	if (target == models.SessionRejected || target == models.SessionClosed) && session.EndedAt == nil {
		now := time.Now().UTC()
		session.EndedAt = &now
	}
	if err := s.db.Save(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func transitionAllowed(from, to string) bool {
	switch from {
	case models.SessionPending:
		return to == models.SessionApproved || to == models.SessionRejected || to == models.SessionClosed
	case models.SessionApproved:
		return to == models.SessionClosed
	default:
		return false
	}
}

// SessionMessages returns the persisted transcript in send order.
func (s *SessionService) SessionMessages(sessionID string) ([]models.Message, error) {
	if _, err := s.Get(sessionID); err != nil {
		return nil, err
	}
	var rows []models.Message
	err := s.db.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveMessage persists one chat message. Used by the gateway's
// persistence workers; the sender type has already been derived from
// the session's homeowner identity.
func (s *SessionService) SaveMessage(msg *models.Message) error {
	return s.db.Create(msg).Error
}
