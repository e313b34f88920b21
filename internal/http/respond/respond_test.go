package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/airobot/server/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_errorKinds(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.NotFound("device not found"), http.StatusNotFound, "device not found"},
		{apperr.Conflict("dup"), http.StatusConflict, "dup"},
		{apperr.InvalidInput("bad"), http.StatusBadRequest, "bad"},
		{apperr.Unauthorized("who"), http.StatusUnauthorized, "who"},
		{apperr.Forbidden("no"), http.StatusForbidden, "no"},
		{apperr.TooManyRequests("slow"), http.StatusTooManyRequests, "slow"},
		{apperr.Internal("db exploded", errors.New("secret dsn")), http.StatusInternalServerError, "internal server error"},
		{errors.New("plain"), http.StatusInternalServerError, "internal server error"},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("gone")), http.StatusNotFound, "gone"},
	}
	for _, c := range cases {
		status, env := Render(Result{Err: c.err}, now)
		assert.Equal(t, c.status, status, c.err.Error())
		assert.Equal(t, c.status, env.Code)
		assert.Equal(t, c.msg, env.Message)
		assert.Equal(t, now, env.Timestamp)
	}
}

func TestRender_success(t *testing.T) {
	status, env := Render(Result{Data: map[string]int{"n": 1}}, time.Now())
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Message)

	status, env = Render(Result{Status: http.StatusCreated, Message: "created"}, time.Now())
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 201, env.Code)
	assert.Equal(t, "created", env.Message)
}

func TestWrite_errorData(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apperr.Unauthorized("second factor required").WithData(map[string]bool{"mfa_required": true}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 401, body["code"])
	assert.Equal(t, map[string]any{"mfa_required": true}, body["data"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestTooManyRequests(t *testing.T) {
	rec := httptest.NewRecorder()
	TooManyRequests(rec, 90*time.Second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
}
