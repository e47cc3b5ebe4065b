package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexark/planning-poker/internal/adapters/ws"
	"github.com/hexark/planning-poker/internal/config"
	"github.com/hexark/planning-poker/internal/ratelimit"
	"github.com/hexark/planning-poker/internal/registry"
	"github.com/hexark/planning-poker/internal/roomid"
	"github.com/hexark/planning-poker/internal/session"
	"github.com/hexark/planning-poker/internal/store/redisstore"
)

func newRouter(t *testing.T, rateLimitMax int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		Mode:            "test",
		KeyPrefix:       "pp:",
		RoomTTL:         20 * 24 * time.Hour,
		ConnectionTTL:   24 * time.Hour,
		RateLimitMax:    rateLimitMax,
		RateLimitWindow: 20 * time.Minute,
		IDAttempts:      5,
		IDSuffixLen:     4,
		ReadLimit:       4096,
		PingPeriod:      54 * time.Second,
	}

	store := redisstore.New(client, cfg.KeyPrefix, cfg.RoomTTL)
	limiter := ratelimit.New(client, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow)
	alloc := roomid.New(store.RoomExists, cfg.IDAttempts, cfg.IDSuffixLen)
	reg := registry.New(cfg.ConnectionTTL)
	engine := session.New(store, reg, alloc, limiter)
	wsctl := ws.NewController(reg, cfg.ReadLimit, cfg.PingPeriod)

	return SetupRouter(t.Context(), cfg, engine, wsctl)
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createRoom(t *testing.T, r *gin.Engine, name string) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/rooms", gin.H{"name": name})
	require.Equal(t, http.StatusCreated, w.Code)
	return decode(t, w)["roomId"].(string)
}

func TestCreateRoom(t *testing.T) {
	r := newRouter(t, 100)

	w := do(t, r, http.MethodPost, "/api/rooms", gin.H{"name": "Sprint 25"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Regexp(t, `^sprint-25-[0-9a-z]{4}$`, decode(t, w)["roomId"])
}

func TestCreateRoomEmptyName(t *testing.T) {
	r := newRouter(t, 100)

	w := do(t, r, http.MethodPost, "/api/rooms", gin.H{"name": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", decode(t, w)["error"])
}

func TestCreateRoomRateLimited(t *testing.T) {
	r := newRouter(t, 2)

	for i := 0; i < 2; i++ {
		w := do(t, r, http.MethodPost, "/api/rooms", gin.H{"name": "quota"})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := do(t, r, http.MethodPost, "/api/rooms", gin.H{"name": "quota"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decode(t, w)["error"])
	assert.Equal(t, "1200", w.Header().Get("Retry-After"))
}

func TestGetRoomNotFound(t *testing.T) {
	r := newRouter(t, 100)

	w := do(t, r, http.MethodGet, "/api/rooms/missing-0000", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["error"])
}

func TestJoinRoomValidation(t *testing.T) {
	r := newRouter(t, 100)
	roomID := createRoom(t, r, "Join")

	w := do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/rooms/gone-0000/join", gin.H{"name": "Ann"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFullFlowOverHTTP(t *testing.T) {
	r := newRouter(t, 100)

	// Create.
	w := do(t, r, http.MethodPost, "/api/rooms", gin.H{"name": "Sprint 25"})
	require.Equal(t, http.StatusCreated, w.Code)
	roomID := decode(t, w)["roomId"].(string)

	// Join Ann and Bo.
	w = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", gin.H{"name": "Ann"})
	require.Equal(t, http.StatusOK, w.Code)
	ann := decode(t, w)["participantId"].(string)

	w = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", gin.H{"name": "Bo"})
	require.Equal(t, http.StatusOK, w.Code)
	bo := decode(t, w)["participantId"].(string)
	require.NotEqual(t, ann, bo)

	// Vote.
	w = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/vote", gin.H{"participantId": ann, "estimate": "5"})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/vote", gin.H{"participantId": bo, "estimate": "8"})
	require.Equal(t, http.StatusOK, w.Code)

	// Hidden before reveal.
	w = do(t, r, http.MethodGet, "/api/rooms/"+roomID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, raw := range decode(t, w)["participants"].([]any) {
		p := raw.(map[string]any)
		assert.Equal(t, true, p["voted"])
		assert.NotContains(t, p, "vote")
	}

	// A participant sees their own vote.
	w = do(t, r, http.MethodGet, "/api/rooms/"+roomID+"?participantId="+ann, nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, raw := range decode(t, w)["participants"].([]any) {
		p := raw.(map[string]any)
		if p["id"] == ann {
			assert.Equal(t, "5", p["vote"])
		} else {
			assert.NotContains(t, p, "vote")
		}
	}

	// Reveal, twice (idempotent).
	w = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/reveal", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/reveal", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/rooms/"+roomID, nil)
	votes := map[string]string{}
	for _, raw := range decode(t, w)["participants"].([]any) {
		p := raw.(map[string]any)
		votes[p["name"].(string)] = p["vote"].(string)
	}
	assert.Equal(t, map[string]string{"Ann": "5", "Bo": "8"}, votes)

	// Advance with outcome.
	w = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/next", gin.H{"outcome": "8"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/rooms/"+roomID, nil)
	body := decode(t, w)
	history := body["previousEstimates"].([]any)
	require.Len(t, history, 1)
	archived := history[0].(map[string]any)
	assert.Equal(t, "8", archived["outcome"])
	assert.Len(t, archived["votes"].(map[string]any), 2)
	for _, raw := range body["participants"].([]any) {
		assert.Equal(t, false, raw.(map[string]any)["voted"])
	}
}

func TestRevealWithoutRound(t *testing.T) {
	r := newRouter(t, 100)
	roomID := createRoom(t, r, "NoRound")

	w := do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/reveal", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/rooms/"+roomID+"/next", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
