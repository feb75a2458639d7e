package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

func testApp(t *testing.T, authEnabled bool) (*App, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Enabled: authEnabled, Secret: "test-secret", Issuer: "timetable", Expiration: time.Hour},
		Import:    config.ImportConfig{MaxUploadBytes: 1024},
		Allocation: config.AllocationConfig{
			QueueBuffer: 4,
			MaxRetries:  1,
			RetryDelay:  time.Millisecond,
		},
	}
	return Wire(cfg, zap.NewNop(), sqlx.NewDb(db, "sqlmock"), nil), mock
}

func serve(router *gin.Engine, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouterProbes(t *testing.T) {
	a, _ := testApp(t, false)
	router := a.Engine()

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/docs/doc.json", "").Code)
}

func TestRouterEnforcesRoles(t *testing.T) {
	a, _ := testApp(t, true)
	router := a.Engine()

	viewer, err := a.Services.Auth.IssueToken(service.IssueTokenRequest{Subject: "screen", Role: "VIEWER"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/skills", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/api/v1/allocations", viewer.Token).Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodPost, "/api/v1/schedule/repair", viewer.Token).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/v1/skills/zero", viewer.Token).Code)
}

func TestAsyncAllocationRequiresStartedQueue(t *testing.T) {
	a, mock := testApp(t, false)
	router := a.Engine()
	mock.ExpectExec(`INSERT INTO allocation_runs`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE allocation_runs`).WillReturnResult(sqlmock.NewResult(0, 1))

	w := serve(router, http.MethodPost, "/api/v1/allocations?async=true", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
