package redisclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/workshop-scheduling/internal/notify"
)

func TestPubSubNotifier_PublishesToRecipientChannel(t *testing.T) {
	_, rdb := newTestRedis(t)
	n := NewPubSubNotifier(rdb, "workshop")
	recipient := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, n.Channel(recipient))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, n.Notify(ctx, notify.Error(recipient, "cannot change a final status")))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "workshop:"+recipient.String(), msg.Channel)

	var got notify.Notification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, recipient, got.RecipientID)
	assert.Equal(t, notify.LevelError, got.Level)
	assert.Equal(t, "cannot change a final status", got.Message)
}

func TestPubSubNotifier_DefaultPrefix(t *testing.T) {
	_, rdb := newTestRedis(t)
	id := uuid.New()
	assert.Equal(t, "notifications:"+id.String(), NewPubSubNotifier(rdb, "").Channel(id))
}
