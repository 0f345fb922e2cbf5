package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	got []Notification
	err error
}

func (s *sink) Notify(ctx context.Context, n Notification) error {
	s.got = append(s.got, n)
	return s.err
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("publish failed")
	ok, failing := &sink{}, &sink{err: boom}
	msg := Error(uuid.New(), "appointment is COMPLETED and can no longer change status")

	err := Fanout{failing, ok}.Notify(context.Background(), msg)
	assert.ErrorIs(t, err, boom)
	require.Len(t, ok.got, 1)
	assert.Equal(t, msg, ok.got[0])
	assert.Len(t, failing.got, 1)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	recipient := uuid.New()

	require.NoError(t, n.Notify(context.Background(), Success(recipient, "booked")))
	assert.Contains(t, buf.String(), "level=success")
	assert.Contains(t, buf.String(), recipient.String())
}
