package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"chem-admin/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	UserEventsChannel  = "user_events"
	OrderEventsChannel = "order_events"
	GSTEventsChannel   = "gst_events"
)

// EventPayload is the wire format sibling services publish on Redis.
type EventPayload struct {
	EventType string            `json:"event_type,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	UserName  string            `json:"user_name,omitempty"`
	Title     string            `json:"title,omitempty"`
	Message   string            `json:"message"`
	EntityID  string            `json:"entity_id,omitempty"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
}

// ProcessEvent turns an inbound business event into an admin notification.
func (s *NotificationService) ProcessEvent(ctx context.Context, channel string, payload []byte) error {
	var event EventPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	var notifType models.NotificationType
	var entityType, title string

	switch channel {
	case UserEventsChannel:
		notifType = models.TypeUserRegistration
		entityType = "user"
		title = fmt.Sprintf("New user registration: %s", event.UserName)
	case OrderEventsChannel:
		notifType = models.TypeOrderNotification
		entityType = "order"
		title = formatOrderTitle(event.EventType)
	case GSTEventsChannel:
		notifType = models.TypeGSTVerification
		entityType = "user"
		title = "GST verification requested"
	default:
		notifType = models.TypeSystemAlert
		title = event.Title
		if title == "" {
			title = "System notification"
		}
	}

	_, err := s.CreateNotification(ctx, models.CreateNotificationInput{
		Type:              notifType,
		Title:             title,
		Message:           event.Message,
		RecipientType:     models.RecipientAllAdmins,
		RelatedEntityType: entityType,
		RelatedEntityID:   event.EntityID,
		CreatedBy:         event.UserID,
		CreatedByType:     models.RoleUser,
	})
	return err
}

func formatOrderTitle(eventType string) string {
	switch eventType {
	case "placed":
		return "New order placed"
	case "cancelled":
		return "Order cancelled"
	case "payment_failed":
		return "Order payment failed"
	default:
		return "Order update"
	}
}

// StartEventSubscribers consumes business events from Redis until the
// context is cancelled.
func (s *NotificationService) StartEventSubscribers(ctx context.Context, rdb *redis.Client) {
	channels := []string{UserEventsChannel, OrderEventsChannel, GSTEventsChannel}

	pubsub := rdb.Subscribe(ctx, channels...)
	defer pubsub.Close()

	log.Printf("Subscribed to Redis channels: %v", channels)

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if err := s.ProcessEvent(ctx, msg.Channel, []byte(msg.Payload)); err != nil {
				log.Printf("Error processing event from %s: %v", msg.Channel, err)
			}
		case <-ctx.Done():
			log.Println("Stopping Redis subscribers...")
			return
		}
	}
}
