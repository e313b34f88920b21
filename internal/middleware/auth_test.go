package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/airobot/server/internal/auth"
	"github.com/airobot/server/internal/model"
	"github.com/airobot/server/internal/repo"
	"github.com/airobot/server/internal/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	gdb := tests.OpenDB(t)
	jwtSvc := auth.NewJWTService("secret", time.Hour)
	u := tests.SeedUser(t, gdb, "alice")

	var seen uint
	h := AuthMiddleware(jwtSvc, repo.NewUserRepo(gdb))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserID(r.Context())
		user, ok := GetUser(r.Context())
		require.True(t, ok)
		assert.Equal(t, model.RoleUser, user.RoleName())
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	token, err := jwtSvc.SignToken(u.ID, u.Username, model.RoleUser)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, call("Bearer "+token).Code)
	assert.Equal(t, u.ID, seen)

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer not-a-jwt").Code)

	other := auth.NewJWTService("other-secret", time.Hour)
	forged, err := other.SignToken(u.ID, u.Username, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+forged).Code)

	require.NoError(t, gdb.Model(&model.User{}).Where("id = ?", u.ID).Update("status", model.UserStatusDisabled).Error)
	assert.Equal(t, http.StatusForbidden, call("Bearer "+token).Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(u *model.User) int {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		if u != nil {
			req = req.WithContext(WithUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call(nil))
	assert.Equal(t, http.StatusForbidden, call(&model.User{ID: 2, Role: &model.Role{Name: model.RoleUser}}))
	assert.Equal(t, http.StatusNoContent, call(&model.User{ID: 1, Role: &model.Role{Name: model.RoleAdmin}}))
}
