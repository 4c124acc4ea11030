// Package presence publishes best-effort activity telemetry. Errors are
// logged and swallowed: presence must never block or fail a user action.
package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/ttopkargo/kargobox/internal/broker/messages"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Tracker struct {
	producer Producer
	topic    string
	now      func() time.Time
}

// New возвращает nil, если продюсер не сконфигурирован — все методы
// трекера безопасно работают и на nil-получателе.
func New(producer Producer, topic string) *Tracker {
	if producer == nil || topic == "" {
		return nil
	}
	return &Tracker{producer: producer, topic: topic, now: time.Now}
}

func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	if t != nil {
		t.now = now
	}
	return t
}

func (t *Tracker) RecordLogin(ctx context.Context, telegramID int64, firstName, username string) {
	if t == nil {
		return
	}
	t.publish(ctx, messages.ActivityLogged{
		TelegramID: telegramID,
		FirstName:  firstName,
		Username:   username,
		EventType:  messages.ActivityEventLogin,
		OccurredAt: t.now().UTC(),
	})
}

func (t *Tracker) RecordSessionEnd(ctx context.Context, telegramID int64, duration time.Duration) {
	if t == nil {
		return
	}
	secs := int32(duration / time.Second)
	t.publish(ctx, messages.ActivityLogged{
		TelegramID:             telegramID,
		EventType:              messages.ActivityEventSessionEnd,
		OccurredAt:             t.now().UTC(),
		SessionDurationSeconds: &secs,
	})
}

func (t *Tracker) publish(ctx context.Context, msg messages.ActivityLogged) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("presence marshal", "error", err.Error())
		return
	}
	key := []byte(strconv.FormatInt(msg.TelegramID, 10))
	if err := t.producer.Publish(ctx, t.topic, key, b); err != nil {
		slog.Warn("presence publish dropped", "event", msg.EventType, "error", err.Error())
	}
}
