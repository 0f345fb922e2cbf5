package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/workshop-scheduling/internal/notify"
)

// PubSubNotifier publishes each notification as JSON on a per-recipient
// channel, "<prefix>:<recipient id>".
type PubSubNotifier struct {
	client *redis.Client
	prefix string
}

func NewPubSubNotifier(client *redis.Client, prefix string) *PubSubNotifier {
	if prefix == "" {
		prefix = "notifications"
	}
	return &PubSubNotifier{
		client: client,
		prefix: prefix,
	}
}

func (n *PubSubNotifier) Channel(recipient uuid.UUID) string {
	return n.prefix + ":" + recipient.String()
}

func (n *PubSubNotifier) Notify(ctx context.Context, msg notify.Notification) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := n.client.Publish(ctx, n.Channel(msg.RecipientID), data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
