package services

import (
	"context"
	"fmt"
	"log"

	"firebase.google.com/go/messaging"
)

// NotificationService pushes a notification to participants who have no live
// connection. Delivery is always best effort; chat never waits on it.
type NotificationService interface {
	NotifyNewMessage(ctx context.Context, deviceToken, senderName, preview string, conversationID uint) error
}

type notificationService struct {
	messagingClient *messaging.Client
}

// NewNotificationService wraps the Firebase Cloud Messaging client. A nil
// client disables pushes (no credentials configured).
func NewNotificationService(client *messaging.Client) NotificationService {
	return &notificationService{messagingClient: client}
}

func (s *notificationService) NotifyNewMessage(ctx context.Context, deviceToken, senderName, preview string, conversationID uint) error {
	if s.messagingClient == nil || deviceToken == "" {
		return nil
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: senderName,
			Body:  preview,
		},
		Data: map[string]string{
			"type":            "new_message",
			"conversation_id": fmt.Sprintf("%d", conversationID),
		},
	}

	_, err := s.messagingClient.Send(ctx, message)
	if err != nil {
		log.Println("Error sending push notification:", err)
		return err
	}
	return nil
}
