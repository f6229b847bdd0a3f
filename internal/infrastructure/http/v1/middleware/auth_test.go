package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "metaform/internal/core/context"
)

type stubValidator struct {
	users map[string]*appctx.UserContext
}

func (s stubValidator) Validate(token string) (*appctx.UserContext, error) {
	if user, ok := s.users[token]; ok {
		return user, nil
	}
	return nil, errors.New("invalid token")
}

func testRouter(validator TokenValidator, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	group := r.Group("/", Auth(validator))
	if len(roles) > 0 {
		group.Use(RequireRole(roles...))
	}
	group.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": appctx.GetUserID(c.Request.Context())})
	})
	return r
}

func doGet(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	validator := stubValidator{users: map[string]*appctx.UserContext{
		"good": {UserID: "u1", Email: "alice@example.com"},
	}}
	r := testRouter(validator)

	w := doGet(r, "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1")

	assert.Equal(t, http.StatusUnauthorized, doGet(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer bad").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Basic good").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "good").Code)
}

func TestAuth_BearerCaseInsensitive(t *testing.T) {
	validator := stubValidator{users: map[string]*appctx.UserContext{
		"good": {UserID: "u1"},
	}}
	r := testRouter(validator)
	assert.Equal(t, http.StatusOK, doGet(r, "bearer good").Code)
}

func TestRequireRole(t *testing.T) {
	validator := stubValidator{users: map[string]*appctx.UserContext{
		"editor": {UserID: "u1", Roles: []string{"editor"}},
		"plain":  {UserID: "u2"},
		"root":   {UserID: "u3", IsAdmin: true},
	}}
	r := testRouter(validator, "editor")

	assert.Equal(t, http.StatusOK, doGet(r, "Bearer editor").Code)
	assert.Equal(t, http.StatusForbidden, doGet(r, "Bearer plain").Code)
	assert.Equal(t, http.StatusOK, doGet(r, "Bearer root").Code, "admin bypasses role checks")
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := stubValidator{users: map[string]*appctx.UserContext{
		"good": {UserID: "u1"},
	}}

	r := gin.New()
	r.Use(ErrorHandler(), OptionalAuth(validator))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": appctx.GetUserID(c.Request.Context())})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code, "anonymous passes through")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "u1")

	// A bad token is ignored rather than rejected.
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
