package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/airobot/server/internal/cache"
	"github.com/airobot/server/internal/config"
	"github.com/airobot/server/internal/jobs"
	"github.com/airobot/server/internal/llm"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type offlineModel struct{}

func (offlineModel) Complete(context.Context, []llm.Message, llm.Options) (string, error) {
	return "", errors.New("model unavailable")
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t   *testing.T
	srv *httptest.Server
	gdb *gorm.DB
	app *App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := tests.OpenDB(t)
	cfg := &config.Config{
		JWTSecret:     "test-secret",
		JWTTTL:        time.Hour,
		OTPSalt:       "salt",
		DevMode:       true,
		OpenAIBaseURL: "http://127.0.0.1:0",
		LLMTimeout:    time.Second,
	}
	a := Build(cfg, gdb, cache.NewMemory(zap.NewNop()), offlineModel{}, zap.NewNop())
	srv := httptest.NewServer(a.Handler)
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, gdb: gdb, app: a}
}

func (h *harness) do(method, path, token string, body any) (int, envelope) {
	h.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func (h *harness) register(name string) string {
	h.t.Helper()
	status, env := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret123",
	})
	require.Equal(h.t, http.StatusCreated, status, env.Message)
	var res struct {
		Token string `json:"token"`
	}
	decodeData(h.t, env, &res)
	require.NotEmpty(h.t, res.Token)
	return res.Token
}

func TestHealthAndAuthGate(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Message)

	status, env = h.do(http.MethodGet, "/api/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, http.StatusUnauthorized, env.Code)

	status, _ = h.do(http.MethodGet, "/api/devices", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginAndPhoneLogin(t *testing.T) {
	h := newHarness(t)
	h.register("alice")

	status, env := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = h.do(http.MethodPost, "/api/auth/send-code", "", map[string]string{"phone": "13800138000"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var sent struct {
		DevCode string `json:"dev_code"`
	}
	decodeData(t, env, &sent)
	require.Len(t, sent.DevCode, 6)

	status, env = h.do(http.MethodPost, "/api/auth/phone-login", "", map[string]string{"phone": "13800138000", "code": sent.DevCode})
	require.Equal(t, http.StatusOK, status, env.Message)
	var res struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	decodeData(t, env, &res)
	assert.NotEmpty(t, res.Token)

	status, env = h.do(http.MethodGet, "/api/auth/me", res.Token, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestDeviceBindingChatFlow(t *testing.T) {
	h := newHarness(t)
	token := h.register("bob")

	status, env := h.do(http.MethodPost, "/api/devices", token, map[string]string{"deviceName": "rex", "deviceType": "dog"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var created struct {
		Device model.Device `json:"device"`
	}
	decodeData(t, env, &created)
	deviceID := created.Device.ID
	require.NotZero(t, deviceID)

	status, env = h.do(http.MethodPost, "/api/device-actions", token, map[string]any{"deviceId": deviceID, "actionId": 1, "prompt": "前进"})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, _ = h.do(http.MethodPost, "/api/device-actions", token, map[string]any{"deviceId": deviceID, "actionId": 1, "prompt": "again"})
	assert.Equal(t, http.StatusConflict, status)

	// The model is unreachable, so the bound prompt is matched by substring.
	status, env = h.do(http.MethodPost, "/api/chat", token, map[string]any{"deviceId": deviceID, "message": "请前进"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var chat struct {
		Conversation struct {
			ActionTriggered *uint  `json:"actionTriggered"`
			Response        string `json:"response"`
		} `json:"conversation"`
	}
	decodeData(t, env, &chat)
	require.NotNil(t, chat.Conversation.ActionTriggered)
	assert.EqualValues(t, 1, *chat.Conversation.ActionTriggered)
	assert.Contains(t, chat.Conversation.Response, "Triggered action")

	status, env = h.do(http.MethodPost, "/api/chat", token, map[string]any{"deviceId": deviceID, "message": "hello"})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &chat)
	assert.Nil(t, chat.Conversation.ActionTriggered)
	assert.Contains(t, chat.Conversation.Response, "hello")

	status, env = h.do(http.MethodGet, fmt.Sprintf("/api/chat/%d?limit=10", deviceID), token, nil)
	require.Equal(t, http.StatusOK, status)
	var history struct {
		Conversations []model.Conversation `json:"conversations"`
	}
	decodeData(t, env, &history)
	assert.Len(t, history.Conversations, 2)

	status, env = h.do(http.MethodPost, "/api/device-heartbeat/heartbeat", "", map[string]any{"deviceId": deviceID})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = h.do(http.MethodGet, fmt.Sprintf("/api/devices/%d", deviceID), token, nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &created)
	assert.Equal(t, model.DeviceOnline, created.Device.Status)

	other := h.register("carol")
	status, _ = h.do(http.MethodGet, fmt.Sprintf("/api/devices/%d", deviceID), other, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = h.do(http.MethodPost, "/api/chat", other, map[string]any{"deviceId": deviceID, "message": "前进"})
	assert.Equal(t, http.StatusNotFound, status)

	status, env = h.do(http.MethodGet, "/api/analytics/ai-response-stats?days=7", token, nil)
	require.Equal(t, http.StatusOK, status)
	var stats struct {
		AIResponse struct {
			Total     int64 `json:"totalConversations"`
			Triggered int64 `json:"actionTriggeredConversations"`
		} `json:"aiResponse"`
	}
	decodeData(t, env, &stats)
	assert.EqualValues(t, 2, stats.AIResponse.Total)
	assert.EqualValues(t, 1, stats.AIResponse.Triggered)
}

func TestValidationAndCatalog(t *testing.T) {
	h := newHarness(t)
	token := h.register("dan")

	status, env := h.do(http.MethodPost, "/api/devices", token, map[string]string{"deviceName": "rex"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "deviceType is required", env.Message)

	status, _ = h.do(http.MethodGet, "/api/devices/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = h.do(http.MethodGet, "/api/devices?page=922337203685477580&limit=100", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, http.StatusBadRequest, env.Code)

	status, env = h.do(http.MethodGet, "/api/actions", token, nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Actions []model.Action `json:"actions"`
	}
	decodeData(t, env, &list)
	assert.Len(t, list.Actions, 6)

	status, env = h.do(http.MethodPost, "/api/actions", token, map[string]any{"name": "dance", "type": "combination", "steps": []uint{1, 2, 3}})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, _ = h.do(http.MethodPost, "/api/actions", token, map[string]any{"name": "marathon", "type": "combination", "steps": []uint{1, 1, 1, 1}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = h.do(http.MethodPost, "/api/actions/execute", token, map[string]any{"actionId": 1})
	require.Equal(t, http.StatusOK, status, env.Message)
}

func TestAdminRequiresRole(t *testing.T) {
	h := newHarness(t)
	token := h.register("erin")

	status, _ := h.do(http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	require.NoError(t, h.gdb.Model(&model.User{}).Where("username = ?", "erin").Update("role_id", 1).Error)

	status, env := h.do(http.MethodGet, "/api/admin/users", token, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = h.do(http.MethodGet, "/api/admin/logs", token, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = h.do(http.MethodPost, "/api/admin/roles", token, map[string]string{"name": "user"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestExportWorkbook(t *testing.T) {
	h := newHarness(t)
	token := h.register("frank")

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/api/analytics/export?days=7", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
}

func TestSchedule(t *testing.T) {
	h := newHarness(t)
	s := jobs.NewScheduler(zap.NewNop())
	require.NoError(t, h.app.Schedule(s))
	s.Start()
	s.Stop(context.Background())
}
