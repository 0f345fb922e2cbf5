// Package notify carries user-facing success and error messages out of the
// scheduling core.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Notification struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Level       Level     `json:"level"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

func Success(recipient uuid.UUID, msg string) Notification {
	return Notification{RecipientID: recipient, Level: LevelSuccess, Message: msg, CreatedAt: time.Now()}
}

func Info(recipient uuid.UUID, msg string) Notification {
	return Notification{RecipientID: recipient, Level: LevelInfo, Message: msg, CreatedAt: time.Now()}
}

func Error(recipient uuid.UUID, msg string) Notification {
	return Notification{RecipientID: recipient, Level: LevelError, Message: msg, CreatedAt: time.Now()}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a structured log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With(slog.String("component", "notify"))}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Notification) error {
	n.log.InfoContext(ctx, "notification",
		slog.String("recipient_id", msg.RecipientID.String()),
		slog.String("level", string(msg.Level)),
		slog.String("message", msg.Message),
	)
	return nil
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, msg Notification) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
