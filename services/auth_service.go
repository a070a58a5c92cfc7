package services

import (
	"errors"
	"time"

	"github.com/fitaccessng/qring-backend/config"
	"github.com/fitaccessng/qring-backend/models"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// AuthService verifies bearer tokens for the HTTP middleware and the
// gateway's connect-time identity resolution. Credential management
// (registration, OAuth) lives outside this service; tokens arrive
// already issued.
type AuthService struct {
	Db          *gorm.DB
	jwtSecret   []byte
	tokenExpiry time.Duration
}

func NewAuthService(db *gorm.DB, config *config.AuthConfig) *AuthService {
	return &AuthService{
		Db:          db,
		jwtSecret:   []byte(config.JWTSecret),
		tokenExpiry: time.Duration(config.TokenExpiry) * time.Hour,
	}
}

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// Identity is the opaque decode the gateway uses at connect time. Any
// failure means "unauthenticated", never a fatal error.
func (s *AuthService) Identity(tokenString string) (userID, role string, err error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", "", err
	}
	userID = claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	return userID, claims.Role, nil
}
