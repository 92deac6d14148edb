package utils

import (
	"context"
	"encoding/json"

	"chem-admin/internal/models"

	"github.com/redis/go-redis/v9"
)

const AdminEventsChannel = "admin_events"

// EventBus re-publishes created notifications on Redis so sibling services
// and dashboard streams can react. Implements services.Broadcaster.
type EventBus struct {
	rdb *redis.Client
}

func NewEventBus(rdb *redis.Client) *EventBus {
	return &EventBus{rdb: rdb}
}

type broadcastPayload struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	RecipientType string `json:"recipient_type"`
	Priority      string `json:"priority"`
}

func (b *EventBus) PublishNotification(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(broadcastPayload{
		ID:            n.ID.Hex(),
		Type:          string(n.Type),
		Title:         n.Title,
		Message:       n.Message,
		RecipientType: string(n.RecipientType),
		Priority:      string(n.Priority),
	})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, AdminEventsChannel, data).Err()
}
