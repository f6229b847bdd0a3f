package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_NoDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewHealthHandler(nil, "1.2.3")
	r := gin.New()
	r.GET("/health/live", h.Live)
	r.GET("/health/ready", h.Ready)
	r.GET("/health/info", h.Info)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Without a pool, readiness has nothing to check.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/info", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.NotEmpty(t, info["uptime"])
	assert.NotContains(t, info, "database")
}
