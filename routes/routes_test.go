package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dcode-github/property_marketplace/booking"
	"github.com/dcode-github/property_marketplace/config"
	"github.com/dcode-github/property_marketplace/controllers"
	"github.com/dcode-github/property_marketplace/lifecycle"
	"github.com/dcode-github/property_marketplace/models"
	"github.com/dcode-github/property_marketplace/notify"
	"github.com/dcode-github/property_marketplace/scheduler"
	"github.com/dcode-github/property_marketplace/store"
	"github.com/dcode-github/property_marketplace/utils"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Code     string          `json:"code"`
	Data     json.RawMessage `json:"data"`
	Warnings []string        `json:"warnings"`
}

type server struct {
	t       *testing.T
	router  *mux.Router
	props   *store.MemoryPropertyStore
	deleter *scheduler.Manager
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := zap.NewNop()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	props := store.NewMemoryPropertyStore()
	appts := store.NewMemoryAppointmentStore()
	users := store.NewCachedUserStore(store.NewMemoryUserStore(), 100, time.Minute)
	t.Cleanup(users.Stop)

	cache := controllers.NewListingCache(rdb, time.Minute, logger)
	deleter := scheduler.NewManager(props, logger)
	t.Cleanup(deleter.Stop)
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)
	cfg := &config.Config{AdminEmails: []string{"admin@example.com"}}

	api := &controllers.API{
		Properties:   lifecycle.NewService(props, deleter, logger),
		Bookings:     booking.NewService(appts, props, users, notify.NewLogNotifier(logger), logger),
		Users:        users,
		Tokens:       tokens,
		Cache:        cache,
		Stats:        controllers.NewStatsAggregator(props, appts, nil, time.Second, logger),
		Logger:       logger,
		IsAdminEmail: cfg.IsAdminEmail,
	}
	router := mux.NewRouter()
	Routes(router, api, tokens, rdb, config.RateLimitConfig{Enabled: false}, logger)
	return &server{t: t, router: router, props: props, deleter: deleter}
}

func (s *server) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (s *server) login(userID, email string) string {
	s.t.Helper()
	creds := map[string]string{"userID": userID, "email": email, "password": "correct-horse"}
	rec, _ := s.do(http.MethodPost, "/register", "", creds)
	require.Equal(s.t, http.StatusCreated, rec.Code)

	rec, env := s.do(http.MethodPost, "/login", "", creds)
	require.Equal(s.t, http.StatusOK, rec.Code)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(s.t, out.Token)
	return out.Token
}

func listing(price float64) map[string]interface{} {
	return map[string]interface{}{
		"title":       "Lake view villa",
		"location":    "Udaipur",
		"price":       price,
		"beds":        3,
		"baths":       2,
		"sqft":        1200,
		"description": "Quiet street",
		"amenities":   []string{"garden"},
		"phone":       "+91 90000 00000",
		"images":      []string{"https://img.example.com/villa.jpg"},
	}
}

func decodeInto(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	s.login("owner", "owner@example.com")

	rec, env := s.do(http.MethodPost, "/register", "", map[string]string{
		"userID": "owner", "email": "other@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USER_ALREADY_EXISTS", env.Code)

	rec, _ = s.do(http.MethodPost, "/register", "", map[string]string{"userID": "x", "email": "bad", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, "/login", "", map[string]string{"userID": "owner", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestPropertyModeration(t *testing.T) {
	s := newServer(t)
	owner := s.login("owner", "owner@example.com")
	admin := s.login("admin", "admin@example.com")
	other := s.login("other", "other@example.com")

	rec, env := s.do(http.MethodPost, "/api/properties", owner, listing(-5))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)

	rec, env = s.do(http.MethodPost, "/api/properties", owner, listing(50000))
	require.Equal(t, http.StatusCreated, rec.Code)
	var p models.Property
	decodeInto(t, env.Data, &p)
	assert.Equal(t, models.ApprovalPending, p.ApprovalStatus)
	path := "/properties/" + p.ID.Hex()

	rec, _ = s.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/admin"+path+"/approve", owner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(http.MethodPost, "/api/admin"+path+"/reject", admin, map[string]string{"reason": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REJECTION_REASON_REQUIRED", env.Code)

	rec, env = s.do(http.MethodPost, "/api/admin"+path+"/reject", admin, map[string]string{"reason": "Incomplete documents"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, env.Data, &p)
	assert.Equal(t, models.ApprovalRejected, p.ApprovalStatus)
	require.NotNil(t, p.ScheduledForDeletion)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *p.ScheduledForDeletion, time.Minute)
	assert.Equal(t, 1, s.deleter.Pending())

	rec, _ = s.do(http.MethodPost, "/api/admin"+path+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.deleter.Pending())

	rec, env = s.do(http.MethodPost, "/api/admin"+path+"/approve", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "PROPERTY_ALREADY_APPROVED", env.Code)

	rec, env = s.do(http.MethodGet, "/properties?location=udai", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	var listed []models.Property
	decodeInto(t, env.Data, &listed)
	assert.Len(t, listed, 1)
	rec, _ = s.do(http.MethodGet, "/properties?location=udai", "", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec, _ = s.do(http.MethodPut, "/api"+path, other, listing(1))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(http.MethodPut, "/api"+path, owner, listing(45000))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, env.Data, &p)
	assert.Equal(t, models.ApprovalPending, p.ApprovalStatus)

	assert.Eventually(t, func() bool {
		rec, env := s.do(http.MethodGet, "/properties?location=udai", "", nil)
		var listed []models.Property
		_ = json.Unmarshal(env.Data, &listed)
		return rec.Header().Get("X-Cache") == "MISS" && len(listed) == 0
	}, 2*time.Second, 10*time.Millisecond)

	rec, _ = s.do(http.MethodDelete, "/api"+path, owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env = s.do(http.MethodDelete, "/api"+path, owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PROPERTY_NOT_FOUND", env.Code)

	rec, _ = s.do(http.MethodGet, "/properties/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	s := newServer(t)
	owner := s.login("owner", "owner@example.com")
	admin := s.login("admin", "admin@example.com")
	alice := s.login("alice", "alice@example.com")
	carol := s.login("carol", "carol@example.com")

	rec, env := s.do(http.MethodPost, "/api/properties", owner, listing(50000))
	require.Equal(t, http.StatusCreated, rec.Code)
	var p models.Property
	decodeInto(t, env.Data, &p)
	rec, _ = s.do(http.MethodPost, "/api/admin/properties/"+p.ID.Hex()+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	slot := map[string]string{"propertyId": p.ID.Hex(), "date": "2025-01-10", "time": "14:00"}

	rec, env = s.do(http.MethodPost, "/api/appointments", owner, slot)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "SELF_BOOKING_NOT_ALLOWED", env.Code)

	rec, env = s.do(http.MethodPost, "/api/appointments", alice, slot)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, env.Warnings)
	var appt models.Appointment
	decodeInto(t, env.Data, &appt)
	assert.Equal(t, models.AppointmentPending, appt.Status)
	apptPath := "/api/appointments/" + appt.ID.Hex()

	rec, env = s.do(http.MethodPost, "/api/appointments", carol, slot)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "TIME_SLOT_UNAVAILABLE", env.Code)

	rec, _ = s.do(http.MethodGet, apptPath, carol, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodPost, apptPath+"/cancel", carol, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(http.MethodPatch, apptPath+"/status", owner, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", env.Code)

	rec, env = s.do(http.MethodPatch, apptPath+"/status", owner, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, env.Data, &appt)
	assert.Equal(t, models.AppointmentConfirmed, appt.Status)

	rec, env = s.do(http.MethodPatch, apptPath+"/meeting-link", owner, map[string]string{"meetingLink": "https://meet.example.com/abc"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, env.Data, &appt)
	assert.Equal(t, "https://meet.example.com/abc", appt.MeetingLink)

	rec, env = s.do(http.MethodPost, apptPath+"/feedback", alice, map[string]interface{}{"rating": 5, "comment": "Great"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, env.Data, &appt)
	assert.Equal(t, models.AppointmentCompleted, appt.Status)

	rec, _ = s.do(http.MethodPost, apptPath+"/feedback", carol, map[string]interface{}{"rating": 5})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(http.MethodPost, "/api/appointments", carol, slot)
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeInto(t, env.Data, &appt)

	rec, env = s.do(http.MethodPost, "/api/appointments/"+appt.ID.Hex()+"/cancel", carol, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, env.Data, &appt)
	assert.Equal(t, "Cancelled by user", appt.CancellationReason)

	rec, env = s.do(http.MethodPost, "/api/appointments", alice, slot)
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeInto(t, env.Data, &appt)
	rec, env = s.do(http.MethodPatch, "/api/appointments/"+appt.ID.Hex()+"/status", owner,
		map[string]string{"status": "cancelled", "reason": "Owner travelling"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, env.Data, &appt)
	assert.Equal(t, models.AppointmentCancelled, appt.Status)
	assert.Equal(t, "Owner travelling", appt.CancellationReason)

	rec, env = s.do(http.MethodGet, "/api/appointments", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []models.Appointment
	decodeInto(t, env.Data, &mine)
	assert.Len(t, mine, 3)

	rec, env = s.do(http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.PropertyStats
	decodeInto(t, env.Data, &stats)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(3), stats.AppointmentsTotal)
	assert.Equal(t, int64(1), stats.ByAppointment["completed"])
	assert.Equal(t, int64(2), stats.ByAppointment["cancelled"])

	rec, _ = s.do(http.MethodGet, "/api/admin/stats", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimitedRouter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limits := config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}

	router := mux.NewRouter()
	api := &controllers.API{Logger: zap.NewNop(), Tokens: utils.NewTokenIssuer("k", time.Hour)}
	Routes(router, api, api.Tokens, rdb, limits, zap.NewNop())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", strings.NewReader("")))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
