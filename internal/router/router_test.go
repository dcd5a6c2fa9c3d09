package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/rewear/internal/config"
	"github.com/iliyamo/rewear/internal/handler"
	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository/memstore"
	"github.com/iliyamo/rewear/internal/service"
	"github.com/iliyamo/rewear/internal/utils"
)

const secret = "router-test-secret"

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	log := zap.NewNop()
	store := memstore.New()
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7}
	accounts := service.NewAccountService(store, bcrypt.MinCost, 0, log)
	catalog := service.NewCatalogService(store, log)

	return New(Deps{
		JWTSecret: secret,
		Log:       log,
		Auth:      handler.NewAuthHandler(cfg, accounts, store.Tokens(), log),
		Items:     handler.NewItemHandler(catalog, log),
		Swaps:     handler.NewSwapHandler(service.NewSwapService(store, nil, log), log),
		Users:     handler.NewUserHandler(accounts, log),
		Admin:     handler.NewAdminHandler(service.NewModerationService(store, catalog, log), log),
	})
}

func get(t *testing.T, e *echo.Echo, path string, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		tok, err := utils.NewAccessToken(secret, 42, role, 5)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	e := newServer(t)
	assert.Equal(t, http.StatusOK, get(t, e, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, get(t, e, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, get(t, e, "/v1/items", "").Code)
	assert.Equal(t, http.StatusNotFound, get(t, e, "/v1/items/7", "").Code)
	assert.NotEmpty(t, get(t, e, "/healthz", "").Header().Get(echo.HeaderXRequestID))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newServer(t)
	for _, path := range []string{"/v1/swaps/my-swaps", "/v1/users/points", "/v1/items/user/me", "/v1/admin/dashboard"} {
		assert.Equal(t, http.StatusUnauthorized, get(t, e, path, "").Code, path)
	}
	assert.Equal(t, http.StatusOK, get(t, e, "/v1/swaps/my-swaps", model.RoleUser).Code)
	assert.Equal(t, http.StatusOK, get(t, e, "/v1/items/user/me", model.RoleUser).Code)
	assert.Equal(t, http.StatusForbidden, get(t, e, "/v1/swaps/my-swaps", "guest").Code)
}

func TestAdminRoutesNeedAdminRole(t *testing.T) {
	e := newServer(t)
	assert.Equal(t, http.StatusForbidden, get(t, e, "/v1/admin/dashboard", model.RoleUser).Code)
	assert.Equal(t, http.StatusOK, get(t, e, "/v1/admin/dashboard", model.RoleAdmin).Code)
	assert.Equal(t, http.StatusOK, get(t, e, "/v1/admin/items/pending", model.RoleAdmin).Code)
}
