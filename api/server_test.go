package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/towerdefense/api"
	"github.com/kasuganosora/towerdefense/audit"
	"github.com/kasuganosora/towerdefense/config"
	mw "github.com/kasuganosora/towerdefense/middleware"
	"github.com/kasuganosora/towerdefense/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(t *testing.T, mutate func(*config.ServerConfig)) *gin.Engine {
	t.Helper()
	cfg := config.Default().Server
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := api.NewEngine(cfg, testutil.SetupRoom(t, nil), mw.NewLimiters(cfg.RateLimitRPS, cfg.RateLimitBurst), nil, zap.NewNop())
	require.NoError(t, err)
	return e
}

func serve(e *gin.Engine, method, target, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = ip + ":40000"
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestNewEngine_Basics(t *testing.T) {
	e := newEngine(t, nil)

	w := serve(e, http.MethodGet, "/health", "127.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/api/game/start", "127.0.0.1").Code)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/nope", "127.0.0.1").Code)
}

func TestNewEngine_IntentAllowlist(t *testing.T) {
	e := newEngine(t, func(c *config.ServerConfig) { c.IntentAllowlist = []string{"10.0.0.0/8"} })

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPost, "/api/game/start", "192.0.2.1").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/snapshot", "192.0.2.1").Code, "reads are open")
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/api/game/start", "10.1.2.3").Code)
}

func TestNewEngine_RateLimitsIntents(t *testing.T) {
	e := newEngine(t, func(c *config.ServerConfig) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 2
	})

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/api/game/reset", "192.0.2.9").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/api/game/reset", "192.0.2.9").Code)
	w := serve(e, http.MethodPost, "/api/game/reset", "192.0.2.9")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	for range 5 {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/snapshot", "192.0.2.9").Code)
	}
}

func TestNewEngine_BadAllowlist(t *testing.T) {
	cfg := config.Default().Server
	cfg.IntentAllowlist = []string{"not-an-ip"}
	_, err := api.NewEngine(cfg, testutil.SetupRoom(t, nil), mw.NewLimiters(1, 1), nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewEngine_AuditTrail(t *testing.T) {
	cfg := config.Default().Server
	cfg.IntentAllowlist = []string{"10.0.0.0/8"}
	trail := audit.New(audit.DefaultConfig(), zap.NewNop())
	defer trail.Stop()
	e, err := api.NewEngine(cfg, testutil.SetupRoom(t, nil), mw.NewLimiters(100, 100), trail, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/api/game/start", "10.0.0.1").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPost, "/api/game/pause", "192.0.2.1").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/snapshot", "10.0.0.1").Code)
	require.NoError(t, trail.Flush(context.Background()))

	w := serve(e, http.MethodGet, "/api/audit?limit=10", "10.0.0.1")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Entries []audit.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Entries, 2, "only intents are audited")
	assert.Equal(t, "POST /api/game/pause", body.Entries[0].Action)
	assert.Equal(t, http.StatusForbidden, body.Entries[0].Status)
	assert.Equal(t, "192.0.2.1", body.Entries[0].Client)
	assert.Equal(t, "POST /api/game/start", body.Entries[1].Action)
	assert.NotEmpty(t, body.Entries[1].TraceID)

	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/api/audit?limit=0", "10.0.0.1").Code)
}

func TestNewEngine_NoAuditRoute(t *testing.T) {
	e := newEngine(t, nil)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/api/audit", "127.0.0.1").Code)
}
