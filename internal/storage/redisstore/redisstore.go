// Package redisstore keeps per-device state (profile, saved tracks) and
// the singleton tariff settings as JSON values in redis. It plays the
// role the device-local storage played in the original client.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ttopkargo/kargobox/internal/models"
	"github.com/ttopkargo/kargobox/internal/services/parcels"
)

// Имена ключей исторические, от первого клиента.
const (
	keyProfilePrefix = "ttop_kargo:user_profile:"
	keyTracksPrefix  = "ttop_kargo:user_tracks:"
	keySettings      = "ttop_kargo:settings"
)

type Store struct {
	c   *redis.Client
	now func() time.Time
}

func New(addr string) *Store {
	return &Store{
		c: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		now: time.Now,
	}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error {
	return s.c.Close()
}

// --- Профиль ---

// UserProfile возвращает nil без ошибки, если профиля нет или запись
// побилась: отсутствие — нормальное состояние устройства.
func (s *Store) UserProfile(ctx context.Context, deviceID string) (*models.UserProfile, error) {
	b, err := s.c.Get(ctx, keyProfilePrefix+deviceID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	var p models.UserProfile
	if json.Unmarshal(b, &p) != nil {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) SaveUserProfile(ctx context.Context, deviceID string, p models.UserProfile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal profile")
	}
	if err := s.c.Set(ctx, keyProfilePrefix+deviceID, b, 0).Err(); err != nil {
		return errors.Wrap(err, "save profile")
	}
	return nil
}

func (s *Store) Logout(ctx context.Context, deviceID string) error {
	if err := s.c.Del(ctx, keyProfilePrefix+deviceID).Err(); err != nil {
		return errors.Wrap(err, "delete profile")
	}
	return nil
}

// --- Сохранённые трек-номера ---

// Список привязан к clientId активного профиля: после logout/login под
// другим профилем устройство видит другой, непересекающийся список.
func (s *Store) tracksKey(ctx context.Context, deviceID string) string {
	p, err := s.UserProfile(ctx, deviceID)
	if err == nil && p != nil {
		return keyTracksPrefix + p.ClientID
	}
	return keyTracksPrefix + "device:" + deviceID
}

func (s *Store) UserTracks(ctx context.Context, deviceID string) ([]models.SavedTrack, error) {
	b, err := s.c.Get(ctx, s.tracksKey(ctx, deviceID)).Bytes()
	if err == redis.Nil {
		return []models.SavedTrack{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get tracks")
	}
	var tracks []models.SavedTrack
	if json.Unmarshal(b, &tracks) != nil {
		return []models.SavedTrack{}, nil
	}
	return tracks, nil
}

// SaveUserTrack идемпотентен; новые записи добавляются в начало —
// порядок "свежие сверху" наблюдаем и является контрактом для UI.
func (s *Store) SaveUserTrack(ctx context.Context, deviceID, id string) error {
	cleanID := parcels.NormalizeID(id)
	if cleanID == "" {
		return nil
	}

	tracks, err := s.UserTracks(ctx, deviceID)
	if err != nil {
		return err
	}
	for _, t := range tracks {
		if t.ID == cleanID {
			return nil
		}
	}

	updated := append([]models.SavedTrack{{ID: cleanID, AddedAt: s.now().UTC()}}, tracks...)
	return s.writeTracks(ctx, deviceID, updated)
}

func (s *Store) RemoveUserTrack(ctx context.Context, deviceID, id string) error {
	cleanID := parcels.NormalizeID(id)

	tracks, err := s.UserTracks(ctx, deviceID)
	if err != nil {
		return err
	}
	updated := tracks[:0]
	for _, t := range tracks {
		if t.ID != cleanID {
			updated = append(updated, t)
		}
	}
	return s.writeTracks(ctx, deviceID, updated)
}

func (s *Store) writeTracks(ctx context.Context, deviceID string, tracks []models.SavedTrack) error {
	b, err := json.Marshal(tracks)
	if err != nil {
		return errors.Wrap(err, "marshal tracks")
	}
	if err := s.c.Set(ctx, s.tracksKey(ctx, deviceID), b, 0).Err(); err != nil {
		return errors.Wrap(err, "save tracks")
	}
	return nil
}

// --- Настройки ---

// AppSettings никогда не возвращает "пусто": битая или отсутствующая
// запись заменяется дефолтами.
func (s *Store) AppSettings(ctx context.Context) (models.AppSettings, error) {
	b, err := s.c.Get(ctx, keySettings).Bytes()
	if err == redis.Nil {
		return models.DefaultAppSettings(), nil
	}
	if err != nil {
		return models.DefaultAppSettings(), errors.Wrap(err, "get settings")
	}
	var st models.AppSettings
	if json.Unmarshal(b, &st) != nil {
		return models.DefaultAppSettings(), nil
	}
	return st, nil
}

func (s *Store) SaveAppSettings(ctx context.Context, st models.AppSettings) error {
	b, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "marshal settings")
	}
	if err := s.c.Set(ctx, keySettings, b, 0).Err(); err != nil {
		return errors.Wrap(err, "save settings")
	}
	return nil
}
