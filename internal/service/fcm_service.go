package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"fundi/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// A payment push older than this is no longer worth showing.
const pushTTL = time.Hour

// FCMService sends push notifications via Firebase Cloud Messaging.
type FCMService struct {
	client *messaging.Client
}

// NewFCMService creates an FCM service. Returns nil if Firebase is not configured.
func NewFCMService(serviceAccountPath string) *FCMService {
	if serviceAccountPath == "" {
		return nil
	}
	ctx := context.Background()
	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		log.Error().Err(err).Str("component", "fcm").Msg("init firebase app")
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", "fcm").Msg("get messaging client")
		return nil
	}
	return &FCMService{client: client}
}

// SendNotification pushes a stored notification to one device. Pushes for the
// same booking collapse on the device so only the latest payment state shows.
func (s *FCMService) SendNotification(ctx context.Context, token string, n *models.Notification) error {
	if s == nil || token == "" || n == nil {
		return nil
	}
	var data map[string]interface{}
	if n.Data != "" {
		_ = json.Unmarshal([]byte(n.Data), &data)
	}
	msg := paymentMessage(token, n, pushData(n.Type, data))
	if _, err := s.client.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Str("component", "fcm").Uint("notification_id", n.ID).Msg("send failed")
		return err
	}
	log.Debug().Str("component", "fcm").Uint("notification_id", n.ID).Msg("push sent")
	return nil
}

func paymentMessage(token string, n *models.Notification, data map[string]string) *messaging.Message {
	collapse := n.Type
	if n.BookingID != nil {
		collapse = fmt.Sprintf("booking-%d", *n.BookingID)
	}
	ttl := pushTTL
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Content,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority:    "high",
			CollapseKey: collapse,
			TTL:         &ttl,
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-collapse-id": collapse},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}

// pushData flattens data into the string map FCM requires.
func pushData(notifType string, data map[string]interface{}) map[string]string {
	out := map[string]string{"type": notifType}
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			if b, err := json.Marshal(v); err == nil {
				out[k] = string(b)
			}
		}
	}
	return out
}
