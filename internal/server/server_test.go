package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulr/haulr/internal/config"
	"github.com/haulr/haulr/internal/logging"
	"github.com/haulr/haulr/internal/routes"
)

func TestNewRequiresBackendsOutsideDev(t *testing.T) {
	_, err := New(routes.Deps{Cfg: config.Config{AppEnv: "production"}, Logger: logging.Discard()})
	assert.ErrorContains(t, err, "database is required")
}

func TestNewInDevUsesMemoryStores(t *testing.T) {
	srv, err := New(routes.Deps{
		Cfg:    config.Config{AppEnv: "test", AppName: "LogisticsMS", Port: "0", AccessTokenSecret: "a", RefreshTokenSecret: "b"},
		Logger: logging.Discard(),
	})
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
