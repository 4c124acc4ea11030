// Package kargoapi is the REST surface over the sheet-backed core.
// Every handler has a defined fallback response: lookups answer 404/empty
// instead of surfacing upstream failures, only registration explains
// what went wrong.
package kargoapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ttopkargo/kargobox/internal/apperror"
	"github.com/ttopkargo/kargobox/internal/models"
	"github.com/ttopkargo/kargobox/internal/storage/pgpresence"
)

type ParcelFinder interface {
	Find(ctx context.Context, id string) (*models.Parcel, error)
}

type ClientDirectory interface {
	Verify(ctx context.Context, clientID, phone string) (*models.UserProfile, error)
	ListAll(ctx context.Context) []models.ClientActivity
}

type ArrivalsResolver interface {
	Resolve(ctx context.Context) models.ArrivedSet
}

type TariffSyncer interface {
	Sync(ctx context.Context) error
}

type DeviceStore interface {
	UserProfile(ctx context.Context, deviceID string) (*models.UserProfile, error)
	SaveUserProfile(ctx context.Context, deviceID string, p models.UserProfile) error
	Logout(ctx context.Context, deviceID string) error
	UserTracks(ctx context.Context, deviceID string) ([]models.SavedTrack, error)
	SaveUserTrack(ctx context.Context, deviceID, id string) error
	RemoveUserTrack(ctx context.Context, deviceID, id string) error
	AppSettings(ctx context.Context) (models.AppSettings, error)
}

type PresenceTracker interface {
	RecordLogin(ctx context.Context, telegramID int64, firstName, username string)
	RecordSessionEnd(ctx context.Context, telegramID int64, duration time.Duration)
}

// ActivityReader опционален: без него админские ручки активности
// отвечают пустым списком.
type ActivityReader interface {
	ListRecentActivity(ctx context.Context, limit int) ([]*pgpresence.ActivityRow, error)
}

type CacheClearer interface {
	Clear(ctx context.Context) error
}

type IsArrivedFunc func(boxCode string, set models.ArrivedSet) bool

type API struct {
	parcels   ParcelFinder
	clients   ClientDirectory
	arrivals  ArrivalsResolver
	isArrived IsArrivedFunc
	tariffs   TariffSyncer
	store     DeviceStore
	presence  PresenceTracker
	activity  ActivityReader
	cache     CacheClearer
}

func New(
	parcels ParcelFinder,
	clients ClientDirectory,
	arrivals ArrivalsResolver,
	isArrived IsArrivedFunc,
	tariffs TariffSyncer,
	store DeviceStore,
) *API {
	return &API{
		parcels:   parcels,
		clients:   clients,
		arrivals:  arrivals,
		isArrived: isArrived,
		tariffs:   tariffs,
		store:     store,
	}
}

func (a *API) WithPresence(t PresenceTracker) *API {
	a.presence = t
	return a
}

func (a *API) WithActivityReader(r ActivityReader) *API {
	a.activity = r
	return a
}

func (a *API) WithCacheClearer(c CacheClearer) *API {
	a.cache = c
	return a
}

func (a *API) Routes(r chi.Router) {
	r.Get("/api/parcels/{id}", a.handleFindParcel)

	r.Post("/api/register", a.handleRegister)
	r.Get("/api/profile", a.handleGetProfile)
	r.Post("/api/logout", a.handleLogout)

	r.Get("/api/tracks", a.handleListTracks)
	r.Post("/api/tracks", a.handleSaveTrack)
	r.Delete("/api/tracks/{id}", a.handleRemoveTrack)

	r.Get("/api/arrivals", a.handleArrivals)
	r.Get("/api/arrivals/check", a.handleArrivalCheck)

	r.Get("/api/settings", a.handleGetSettings)
	r.Post("/api/settings/sync", a.handleSyncSettings)

	r.Get("/api/admin/clients", a.handleAdminClients)
	r.Get("/api/admin/activity", a.handleAdminActivity)
	r.Post("/api/admin/cache/clear", a.handleCacheClear)
}

// --- Посылки ---

type findParcelResponse struct {
	Parcel  *models.Parcel `json:"parcel"`
	Arrived bool           `json:"arrived"`
}

func (a *API) handleFindParcel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := a.parcels.Find(r.Context(), id)
	if err != nil || p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	arrived := false
	if p.BoxCode != "" && a.arrivals != nil && a.isArrived != nil {
		set := a.arrivals.Resolve(r.Context())
		arrived = a.isArrived(p.BoxCode, set)
	}
	if arrived && len(p.History) > 0 {
		p.History[0].Completed = true
	}

	writeJSON(w, http.StatusOK, findParcelResponse{Parcel: p, Arrived: arrived})
}

// --- Регистрация / профиль ---

type registerRequest struct {
	DeviceID   string `json:"deviceId"`
	ClientID   string `json:"clientId"`
	Phone      string `json:"phone"`
	TelegramID int64  `json:"telegramId,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	Username   string `json:"username,omitempty"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "deviceId, clientId and phone are required"})
		return
	}

	profile, err := a.clients.Verify(r.Context(), req.ClientID, req.Phone)
	if err != nil {
		writeJSON(w, verifyStatus(err), map[string]string{"error": apperror.UserMessage(err)})
		return
	}

	if err := a.store.SaveUserProfile(r.Context(), req.DeviceID, *profile); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save profile"})
		return
	}

	if a.presence != nil && req.TelegramID != 0 {
		a.presence.RecordLogin(r.Context(), req.TelegramID, req.FirstName, req.Username)
	}

	writeJSON(w, http.StatusOK, profile)
}

func verifyStatus(err error) int {
	switch {
	case errors.Is(err, apperror.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperror.ErrNetworkUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, apperror.ErrSourceDenied):
		return http.StatusBadGateway
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device")
	if deviceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "device is required"})
		return
	}
	p, err := a.store.UserProfile(r.Context(), deviceID)
	if err != nil || p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no profile"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type logoutRequest struct {
	DeviceID        string `json:"deviceId"`
	TelegramID      int64  `json:"telegramId,omitempty"`
	DurationSeconds int32  `json:"durationSeconds,omitempty"`
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "deviceId is required"})
		return
	}
	if err := a.store.Logout(r.Context(), req.DeviceID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to logout"})
		return
	}
	if a.presence != nil && req.TelegramID != 0 {
		a.presence.RecordSessionEnd(r.Context(), req.TelegramID, time.Duration(req.DurationSeconds)*time.Second)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Сохранённые треки ---

func (a *API) handleListTracks(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device")
	if deviceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "device is required"})
		return
	}
	tracks, err := a.store.UserTracks(r.Context(), deviceID)
	if err != nil {
		tracks = []models.SavedTrack{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

type saveTrackRequest struct {
	DeviceID string `json:"deviceId"`
	ID       string `json:"id"`
}

func (a *API) handleSaveTrack(w http.ResponseWriter, r *http.Request) {
	var req saveTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "deviceId and id are required"})
		return
	}
	if err := a.store.SaveUserTrack(r.Context(), req.DeviceID, req.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save track"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device")
	id := chi.URLParam(r, "id")
	if deviceID == "" || id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "device and id are required"})
		return
	}
	if err := a.store.RemoveUserTrack(r.Context(), deviceID, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to remove track"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Прибывшие рейсы ---

type arrivalsResponse struct {
	Avia []string `json:"avia"`
	Avto []string `json:"avto"`
}

func (a *API) handleArrivals(w http.ResponseWriter, r *http.Request) {
	set := a.arrivals.Resolve(r.Context())
	writeJSON(w, http.StatusOK, arrivalsResponse{
		Avia: sortedKeys(set.Avia),
		Avto: sortedKeys(set.Avto),
	})
}

func (a *API) handleArrivalCheck(w http.ResponseWriter, r *http.Request) {
	boxCode := r.URL.Query().Get("box")
	arrived := false
	if boxCode != "" && a.isArrived != nil {
		set := a.arrivals.Resolve(r.Context())
		arrived = a.isArrived(boxCode, set)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"arrived": arrived})
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// --- Настройки ---

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := a.store.AppSettings(r.Context())
	if err != nil {
		st = models.DefaultAppSettings()
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleSyncSettings(w http.ResponseWriter, r *http.Request) {
	_ = a.tariffs.Sync(r.Context())
	st, err := a.store.AppSettings(r.Context())
	if err != nil {
		st = models.DefaultAppSettings()
	}
	writeJSON(w, http.StatusOK, st)
}

// --- Админка ---

func (a *API) handleAdminClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.clients.ListAll(r.Context()))
}

func (a *API) handleAdminActivity(w http.ResponseWriter, r *http.Request) {
	if a.activity == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	rows, err := a.activity.ListRecentActivity(r.Context(), 100)
	if err != nil || rows == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	cleared := false
	if a.cache != nil {
		cleared = a.cache.Clear(r.Context()) == nil
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
