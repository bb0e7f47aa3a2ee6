package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dhanush6858/green-gaurdian/internal/application/command"
	"github.com/Dhanush6858/green-gaurdian/internal/application/query"
	"github.com/Dhanush6858/green-gaurdian/internal/application/session"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/notification"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/memory"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/service"
	"github.com/Dhanush6858/green-gaurdian/internal/interface/http/handlers"
	"github.com/Dhanush6858/green-gaurdian/pkg/logger"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

// Wednesday.
var t0 = time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

const adminKey = "admin-secret"

type testEnv struct {
	server        *Server
	store         *memory.Store
	notifications *service.NotificationCenter
	auth          *handlers.Authenticator
}

func newTestEnv(t *testing.T, cfg Config, auth *handlers.Authenticator, health handlers.HealthChecker) *testEnv {
	t.Helper()

	tracker, err := progress.NewTracker(progress.DefaultConfig())
	require.NoError(t, err)

	store := memory.NewStore()
	clock := timeutil.NewManualClock(t0)
	runner := session.NewRunner(store, tracker, clock, nil, nil, session.DefaultConfig())
	center := service.NewNotificationCenter(clock, nil, service.DefaultNotificationCenterConfig())

	srv := NewServer(cfg, Dependencies{
		RecordAction:         command.NewRecordActionHandler(runner, nil),
		EvaluateAchievements: command.NewEvaluateAchievementsHandler(runner),
		UpdateChallenge:      command.NewUpdateChallengeHandler(runner),
		Initialize:           command.NewInitializeHandler(runner),
		ResetProgress:        command.NewResetProgressHandler(runner, nil),
		UpdateSettings:       command.NewUpdateSettingsHandler(store),

		GetProgress:        query.NewGetProgressHandler(runner),
		GetChallenges:      query.NewGetChallengesHandler(runner),
		GetAchievements:    query.NewGetAchievementsHandler(runner),
		GetMonthlyProgress: query.NewGetMonthlyProgressHandler(runner),
		GetActivity:        query.NewGetActivityHandler(runner),
		GetSettings:        query.NewGetSettingsHandler(store),
		GetRecommendations: query.NewGetRecommendationsHandler(nil, nil, nil, nil),

		Notifications: center,
		Auth:          auth,
		HealthChecker: health,
		Clock:         clock,
		Logger:        logger.Nop(),
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{server: srv, store: store, notifications: center, auth: auth}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return cfg
}

func newAuth(t *testing.T) *handlers.Authenticator {
	t.Helper()
	hash, err := handlers.HashAPIKey(adminKey, bcrypt.MinCost)
	require.NoError(t, err)
	return handlers.NewAuthenticator(handlers.AuthConfig{
		APIKeyHashes: []string{hash},
		TokenSecret:  "token-secret",
		TokenTTL:     time.Hour,
		TokenIssuer:  "green-guardian",
	})
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestHealth_NoChecker(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)

	rec, env := e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, rec.Header().Get("X-Request-Id"), env.RequestID)
}

func TestHealth_CriticalAndOptionalChecks(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("storage", func(context.Context) error { return nil })
	checker.AddOptionalCheck("recommendations", func(context.Context) error { return errors.New("down") })
	e := newTestEnv(t, testConfig(), nil, checker)

	rec, env := e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	status := decodeData[handlers.HealthStatus](t, env)
	assert.True(t, status.Degraded)

	rec, _ = e.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.AddCheck("storage", func(context.Context) error { return errors.New("db down") })
	rec, _ = e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec, _ = e.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNotFoundRoute(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)

	rec, env := e.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordActionAndProgress(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)

	rec, env := e.do(t, http.MethodPost, "/api/v1/installations/inst-1/actions", map[string]any{
		"kind":       "chose_secondhand",
		"co2Kg":      2.5,
		"moneySaved": 40,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeData[command.RecordActionResult](t, env)
	assert.Equal(t, 25, res.XPAwarded)
	assert.True(t, res.Persisted)
	assert.Equal(t, 1, res.Streak)

	rec, env = e.do(t, http.MethodGet, "/api/v1/installations/inst-1/progress", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeData[query.ProgressDTO](t, env)
	assert.Equal(t, res.TotalXP, dto.XP)
	assert.Len(t, dto.RecentActivity, 1)
	assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))

	rec, env = e.do(t, http.MethodGet, "/api/v1/installations/inst-1/activity?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.Meta.TotalCount)
}

func TestRecordAction_StoreUnavailableIsAccepted(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)
	e.store.FailSaves(errors.New("disk full"))

	rec, env := e.do(t, http.MethodPost, "/api/v1/installations/inst-1/actions",
		map[string]any{"kind": "viewed_alternative"}, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.False(t, decodeData[command.RecordActionResult](t, env).Persisted)
}

func TestRecordAction_Validation(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)

	tests := []struct {
		name string
		body any
	}{
		{"unknown kind", map[string]any{"kind": "bought_new"}},
		{"missing kind", map[string]any{"amount": 1}},
		{"negative amount", map[string]any{"kind": "saved_money", "amount": -3}},
		{"amount above limit", map[string]any{"kind": "saved_emissions", "amount": 1e20}},
		{"co2 above limit", map[string]any{"kind": "chose_secondhand", "co2Kg": 1e308}},
		{"unknown field", map[string]any{"kind": "saved_money", "extra": true}},
		{"malformed", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := e.do(t, http.MethodPost, "/api/v1/installations/inst-1/actions", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "invalid_request", env.Error.Code)
		})
	}
}

func TestUpdateChallenge_UnknownIsNotFound(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)

	rec, env := e.do(t, http.MethodPost, "/api/v1/installations/inst-1/challenges/no_such/progress", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestResetProgress(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)

	rec, _ := e.do(t, http.MethodPost, "/api/v1/installations/inst-1/actions",
		map[string]any{"kind": "viewed_alternative"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodDelete, "/api/v1/installations/inst-1/progress", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := e.store.Load(context.Background(), "inst-1")
	assert.Error(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

func TestSettings(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)
	path := "/api/v1/installations/inst-1/settings"

	rec, env := e.do(t, http.MethodPatch, path, map[string]any{"carbonEmissionUnits": "stone"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Details, "carbonEmissionUnits")

	rec, env = e.do(t, http.MethodPatch, path, map[string]any{
		"carbonEmissionUnits":   "lbs",
		"preferredMarketplaces": []string{"swappa"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeData[command.UpdateSettingsResult](t, env)
	assert.Equal(t, "lbs", res.Settings.CarbonEmissionUnits)
	assert.Len(t, res.ChangedFields, 2)

	rec, env = e.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"swappa"}, decodeData[progress.Settings](t, env).PreferredMarketplaces)

	rec, env = e.do(t, http.MethodDelete, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, progress.DefaultSettings(), decodeData[command.UpdateSettingsResult](t, env).Settings)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS & RECOMMENDATIONS
// ══════════════════════════════════════════════════════════════════════════════

func TestNotifications(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)
	n, err := notification.NewNotification(notification.NewNotificationParams{
		ID:             "n-1",
		InstallationID: "inst-1",
		Kind:           notification.KindAchievement,
		Title:          "First Steps",
		CreatedAt:      t0,
	})
	require.NoError(t, err)
	require.NoError(t, e.notifications.Show(context.Background(), n))

	rec, env := e.do(t, http.MethodGet, "/api/v1/installations/inst-1/notifications", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeData[[]notification.Notification](t, env)
	require.Len(t, items, 1)
	assert.Equal(t, "First Steps", items[0].Title)

	rec, _ = e.do(t, http.MethodDelete, "/api/v1/installations/inst-1/notifications/n-1", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodDelete, "/api/v1/installations/inst-1/notifications/n-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecommendations_Fallback(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)

	rec, env := e.do(t, http.MethodPost, "/api/v1/recommendations", map[string]any{
		"product": map[string]any{"title": "Apple iPhone 15 128GB", "price": "$799.00", "brand": "Apple"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "fallback", data["source"])
	assert.Equal(t, false, data["cached"])
}

func TestRecommendations_InvalidURL(t *testing.T) {
	e := newTestEnv(t, testConfig(), nil, nil)

	rec, _ := e.do(t, http.MethodPost, "/api/v1/recommendations", map[string]any{
		"product": map[string]any{"title": "Kettle", "url": "not a url"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH & RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

func TestAuth_TokenFlow(t *testing.T) {
	e := newTestEnv(t, testConfig(), newAuth(t), nil)
	admin := map[string]string{"X-API-Key": adminKey}

	rec, env := e.do(t, http.MethodGet, "/api/v1/installations/inst-1/progress", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_credentials", env.Error.Code)

	rec, _ = e.do(t, http.MethodGet, "/api/v1/installations/inst-1/progress", nil,
		map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/api/v1/installations/inst-1/progress", nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = e.do(t, http.MethodPost, "/api/v1/installations/inst-1/token", nil, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token := decodeData[map[string]any](t, env)["token"].(string)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	rec, _ = e.do(t, http.MethodGet, "/api/v1/installations/inst-1/progress", nil, bearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/api/v1/installations/inst-2/progress", nil, bearer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = e.do(t, http.MethodPost, "/api/v1/installations/inst-1/token", nil, bearer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = e.do(t, http.MethodPost, "/api/v1/recommendations",
		map[string]any{"product": map[string]any{"title": "Kettle"}}, bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_TokensDisabled(t *testing.T) {
	hash, err := handlers.HashAPIKey(adminKey, bcrypt.MinCost)
	require.NoError(t, err)
	auth := handlers.NewAuthenticator(handlers.AuthConfig{APIKeyHashes: []string{hash}})
	e := newTestEnv(t, testConfig(), auth, nil)

	rec, env := e.do(t, http.MethodPost, "/api/v1/installations/inst-1/token", nil,
		map[string]string{"X-API-Key": adminKey})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "tokens_disabled", env.Error.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	e := newTestEnv(t, cfg, nil, nil)

	for range 2 {
		rec, _ := e.do(t, http.MethodGet, "/live", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := e.do(t, http.MethodGet, "/live", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestCORS_Preflight(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"chrome-extension://abc"}
	e := newTestEnv(t, cfg, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recommendations", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "chrome-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errBadRequest, http.StatusBadRequest},
		{shared.ErrInvalidMagnitude, http.StatusBadRequest},
		{shared.ErrInvalidInstallation, http.StatusBadRequest},
		{shared.ErrProgressNotFound, http.StatusNotFound},
		{shared.ErrStaleVersion, http.StatusConflict},
		{shared.ErrRecommendationUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
