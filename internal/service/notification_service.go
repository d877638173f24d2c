package service

import (
	"context"
	"encoding/json"
	"fmt"

	"fundi/internal/domain"
	"fundi/internal/models"
	"fundi/internal/repository"

	"gorm.io/gorm"
)

type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	fcm      *FCMService
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, fcm: fcm}
}

// RecordPaymentReceived stores the provider's payment_received notification
// using tx. No push is sent; call Push once tx has committed.
func (s *NotificationService) RecordPaymentReceived(tx *gorm.DB, providerUserID, bookingID uint, receipt string, amount float64) (*models.Notification, error) {
	data, err := json.Marshal(map[string]interface{}{
		"booking_id": bookingID,
		"receipt":    receipt,
		"amount":     amount,
	})
	if err != nil {
		return nil, fmt.Errorf("encode notification data: %w", err)
	}
	n := &models.Notification{
		UserID:    providerUserID,
		BookingID: &bookingID,
		Type:      domain.NotificationPaymentReceived,
		Title:     "Payment received",
		Content:   fmt.Sprintf("Payment of KES %.2f received for booking #%d. M-Pesa receipt %s.", amount, bookingID, receipt),
		Data:      string(data),
	}
	if err := s.repo.WithTx(tx).Create(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Push delivers a stored notification to the recipient's device. It is a
// no-op when FCM is not configured or the user has no token.
func (s *NotificationService) Push(ctx context.Context, n *models.Notification) {
	if s.fcm == nil || s.userRepo == nil || n == nil {
		return
	}
	token, err := s.userRepo.FCMToken(n.UserID)
	if err != nil || token == "" {
		return
	}
	_ = s.fcm.SendNotification(ctx, token, n)
}

func (s *NotificationService) List(userID uint, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUserID(userID, limit, offset)
}

func (s *NotificationService) MarkRead(id, userID uint) (bool, error) {
	return s.repo.MarkRead(id, userID)
}
