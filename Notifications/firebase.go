package Notifications

import (
	"context"
	"fmt"
	"log"

	"Beacon/Models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

var firebaseClient *messaging.Client
var ctx = context.Background()

// InitFirebase wires the FCM client. Call once at startup; when it fails the
// app still runs, pushes are just skipped.
func InitFirebase(credentialsFile string) error {
	opt := option.WithCredentialsFile(credentialsFile)

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return fmt.Errorf("error initializing Firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("error getting Messaging client: %v", err)
	}

	firebaseClient = client
	log.Println("Firebase initialized successfully")
	return nil
}

// FCMSink delivers pushes to users through their registered device tokens.
type FCMSink struct {
	DB *gorm.DB
}

// SendToUsers pushes title/body/data to every registered device of the given
// users. Delivery problems are logged per token and never returned as hard
// failures beyond the summary error; callers treat this sink as
// fire-and-forget.
func (s *FCMSink) SendToUsers(companyID uint, userIDs []uint, title, body string, data map[string]string) error {
	if firebaseClient == nil {
		log.Println("firebase client not initialized, skipping push")
		return nil
	}
	if len(userIDs) == 0 {
		return nil
	}

	var tokens []Models.FCMToken
	if err := s.DB.
		Where("company_id = ? AND user_id IN ?", companyID, userIDs).
		Find(&tokens).Error; err != nil {
		return fmt.Errorf("loading fcm tokens: %w", err)
	}

	for _, token := range tokens {
		message := &messaging.Message{
			Token: token.Value,
			Data:  data,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Android: &messaging.AndroidConfig{
				Notification: &messaging.AndroidNotification{
					Sound: "default",
				},
				Priority: "high",
			},
		}
		if _, err := firebaseClient.Send(ctx, message); err != nil {
			log.Printf("Error sending push to user %d: %v", token.UserID, err)
		}
	}
	return nil
}
