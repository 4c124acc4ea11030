package messages

import "time"

const (
	ActivityEventLogin      = "login"
	ActivityEventSessionEnd = "session_end"
)

// ActivityLogged — событие присутствия, летит из API в presence-worker.
type ActivityLogged struct {
	TelegramID int64  `json:"telegram_id"`
	FirstName  string `json:"first_name,omitempty"`
	Username   string `json:"username,omitempty"`

	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`

	// Длительность сессии в секундах, только для session_end.
	SessionDurationSeconds *int32 `json:"session_duration_seconds,omitempty"`
}
