package service

import (
	"errors"

	"fundi/config"
	"fundi/internal/auth"
	"fundi/internal/models"
	"fundi/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCreds = errors.New("invalid email or password")

// AuthService issues access tokens for accounts owned by the marketplace.
// Registration lives in the user subsystem.
type AuthService struct {
	cfg      *config.Config
	userRepo *repository.UserRepository
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

func (s *AuthService) Login(email, password string) (*models.User, string, error) {
	u, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", err
	}
	if u.PasswordHash == "" {
		return nil, "", ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCreds
	}
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, access, nil
}

// UpdateFCMToken stores the device token used for payment pushes.
func (s *AuthService) UpdateFCMToken(userID uint, token string) error {
	return s.userRepo.SetFCMToken(userID, token)
}
