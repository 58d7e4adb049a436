package serverapp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"virtualassoc/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HealthCheckTimeout: time.Second,
			DefaultLimit:       100,
			MaxLimit:           1000,
		},
	}
}

func TestBuildRouter_Health(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	cat, _ := postCatalog(t)
	mux := buildRouter(routerConfig(), testLogger(), db, cat, nil)

	mock.ExpectPing()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, rec.Body.String())

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","database":"failed"}`, rec.Body.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildRouter_MetricsDisabled(t *testing.T) {
	cat, _ := postCatalog(t)
	mux := buildRouter(routerConfig(), testLogger(), nil, cat, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildRouter_RecordsRequiresGet(t *testing.T) {
	cat, _ := postCatalog(t)
	mux := buildRouter(routerConfig(), testLogger(), nil, cat, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/records/post", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWrapHTTPHandler_SetsRequestID(t *testing.T) {
	handler := wrapHTTPHandler(&config.Config{}, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}
