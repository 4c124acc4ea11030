package pgpresence

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

type User struct {
	TelegramID int64
	FirstName  string
	Username   string
	CreatedAt  time.Time
	LastActive time.Time
}

type ActivityRow struct {
	LogID           int64
	TelegramID      int64
	EventType       string
	OccurredAt      time.Time
	SessionDuration *int32
}

// UpsertUser создаёт строку пользователя либо освежает last_active.
func (s *Storage) UpsertUser(ctx context.Context, telegramID int64, firstName, username string, lastActive time.Time) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO users (telegram_id, first_name, username, created_at, last_active)
VALUES ($1,$2,$3,$4,$4)
ON CONFLICT (telegram_id)
DO UPDATE SET first_name = EXCLUDED.first_name,
              username = EXCLUDED.username,
              last_active = EXCLUDED.last_active
`, telegramID, firstName, username, lastActive.UTC())
	return errors.Wrap(err, "upsert user")
}

func (s *Storage) InsertActivity(ctx context.Context, row ActivityRow) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO activity_logs (telegram_id, event_type, occurred_at, session_duration)
VALUES ($1,$2,$3,$4)
`, row.TelegramID, row.EventType, row.OccurredAt.UTC(), row.SessionDuration)
	return errors.Wrap(err, "insert activity")
}

func (s *Storage) ListRecentActivity(ctx context.Context, limit int) ([]*ActivityRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT log_id, telegram_id, event_type, occurred_at, session_duration
FROM activity_logs
ORDER BY occurred_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select activity")
	}
	defer rows.Close()

	var out []*ActivityRow
	for rows.Next() {
		var r ActivityRow
		if err := rows.Scan(&r.LogID, &r.TelegramID, &r.EventType, &r.OccurredAt, &r.SessionDuration); err != nil {
			return nil, errors.Wrap(err, "scan activity")
		}
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListUsers(ctx context.Context, limit int) ([]*User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT telegram_id, first_name, username, created_at, last_active
FROM users
ORDER BY last_active DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.TelegramID, &u.FirstName, &u.Username, &u.CreatedAt, &u.LastActive); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, &u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
