package rest_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/towerdefense/api/rest"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/sim"
	"github.com/kasuganosora/towerdefense/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newGameRouter(t *testing.T, mutate func(*sim.Config), intents ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	h := rest.NewGameHandler(testutil.SetupRoom(t, mutate))
	r := gin.New()
	h.Register(r, intents...)
	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	return do(r, http.MethodPost, path, body)
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	return do(r, http.MethodGet, path, nil)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func money(t *testing.T, w *httptest.ResponseRecorder) float64 {
	t.Helper()
	eco, ok := decode(t, w)["economy"].(map[string]any)
	require.True(t, ok)
	return eco["money"].(float64)
}

func place(row, col int, kind string) map[string]any {
	return map[string]any{"row": row, "col": col, "kind": kind}
}

// ---- Lifecycle ----

func TestHealth(t *testing.T) {
	r := newGameRouter(t, nil)
	w := get(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestLifecycle(t *testing.T) {
	r := newGameRouter(t, nil)

	w := postJSON(r, "/api/game/pause", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "cannot pause before start")

	w = postJSON(r, "/api/game/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", decode(t, w)["state"])

	w = postJSON(r, "/api/game/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = postJSON(r, "/api/game/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paused", decode(t, w)["state"])

	w = postJSON(r, "/api/game/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not_started", decode(t, w)["state"])
}

func TestSetSpeed(t *testing.T) {
	r := newGameRouter(t, nil)

	w := postJSON(r, "/api/game/speed", map[string]any{"factor": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/game/speed", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/game/speed", map[string]any{"factor": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decode(t, w)["speed"])
}

// ---- Towers ----

func TestPlaceTower(t *testing.T) {
	r := newGameRouter(t, nil)

	w := postJSON(r, "/api/towers", place(3, 3, "cannon"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 50.0, money(t, w))
	tower := decode(t, w)["tower"].(map[string]any)
	assert.Equal(t, "cannon", tower["kind"])
	assert.Equal(t, 1.0, tower["level"])

	w = postJSON(r, "/api/towers", place(3, 3, "cannon"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "occupied", decode(t, w)["reason"])

	w = postJSON(r, "/api/towers", place(6, 3, "cannon"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "spawn_or_exit", decode(t, w)["reason"])

	w = postJSON(r, "/api/towers", place(1, 1, "mortar"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/towers", map[string]any{"col": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code, "row is required")

	// kind defaults to cannon
	w = postJSON(r, "/api/towers", map[string]any{"row": 1, "col": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 0.0, money(t, w))

	w = postJSON(r, "/api/towers", place(5, 5, "cannon"))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestSellTower(t *testing.T) {
	r := newGameRouter(t, nil)
	w := postJSON(r, "/api/towers", place(3, 3, "cannon"))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["tower"].(map[string]any)["id"].(float64)

	w = do(r, http.MethodDelete, "/api/towers/"+ftoa(id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 25.0, decode(t, w)["refund"])
	assert.Equal(t, 75.0, money(t, w))

	w = do(r, http.MethodDelete, "/api/towers/"+ftoa(id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodDelete, "/api/towers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpgradeTower(t *testing.T) {
	r := newGameRouter(t, func(c *sim.Config) { c.Economy.StartMoney = 1000 })
	w := postJSON(r, "/api/towers", place(3, 3, "cannon"))
	require.Equal(t, http.StatusCreated, w.Code)
	id := ftoa(decode(t, w)["tower"].(map[string]any)["id"].(float64))

	w = postJSON(r, "/api/towers/"+id+"/upgrade", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decode(t, w)["tower"].(map[string]any)["level"])
	assert.Equal(t, 900.0, money(t, w))

	w = postJSON(r, "/api/towers/"+id+"/upgrade", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/api/towers/"+id+"/upgrade", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "max level")

	w = postJSON(r, "/api/towers/99/upgrade", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlacementPreview(t *testing.T) {
	r := newGameRouter(t, nil)

	w := get(r, "/api/placement?row=2&col=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["placeable"])

	w = get(r, "/api/placement?row=0&col=3")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["placeable"])
	assert.Equal(t, "spawn_or_exit", body["reason"])

	w = get(r, "/api/placement?row=9&col=9")
	assert.Equal(t, "out_of_bounds", decode(t, w)["reason"])

	w = get(r, "/api/placement?row=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKinds(t *testing.T) {
	r := newGameRouter(t, nil)
	w := get(r, "/api/towers/kinds")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body, 3)
	cannon := body["cannon"].(map[string]any)
	assert.Equal(t, "projectile", cannon["capability"])
	assert.Len(t, cannon["levels"], 3)
}

func TestSnapshot(t *testing.T) {
	r := newGameRouter(t, nil)
	postJSON(r, "/api/towers", place(3, 3, "cannon"))

	w := get(r, "/api/snapshot")
	require.Equal(t, http.StatusOK, w.Code)
	var s sim.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, sim.NotStarted, s.State)
	assert.Len(t, s.Towers, 1)
	assert.Equal(t, 7, s.Rows)
	assert.NotEmpty(t, s.Route)
}

func TestIntentMiddlewareOnlyWrapsWrites(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }
	r := newGameRouter(t, nil, deny)

	assert.Equal(t, http.StatusOK, get(r, "/api/snapshot").Code)
	assert.Equal(t, http.StatusOK, get(r, "/health").Code)
	assert.Equal(t, http.StatusForbidden, postJSON(r, "/api/game/start", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodDelete, "/api/towers/1", nil).Code)
}

func ftoa(f float64) string { return strconv.FormatInt(int64(f), 10) }

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		nil: http.StatusOK,
		&grid.PlacementError{Reason: grid.ReasonBlocksPath}: http.StatusConflict,
		fmt.Errorf("%w: 50", sim.ErrInsufficientFunds):      http.StatusPaymentRequired,
		sim.ErrTowerNotFound:                                http.StatusNotFound,
		sim.ErrMaxLevel:                                     http.StatusConflict,
		sim.ErrInvalidSpeed:                                 http.StatusBadRequest,
		errors.New("boom"):                                  http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, rest.StatusFor(err), "%v", err)
	}
}
