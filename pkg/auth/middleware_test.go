package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	issuer := NewTokenIssuer("test-secret", time.Hour)

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.GET("/whoami", Middleware(issuer), func(gctx *gin.Context) {
			gctx.JSON(http.StatusOK, gin.H{"user_id": gctx.GetString(IdentityKey)})
		})

		return router
	}

	t.Run("valid bearer token", func(t *testing.T) {
		token, err := issuer.Issue("user-1")
		require.NoError(t, err)

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		request.Header.Set("Authorization", "Bearer "+token)

		newRouter().ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "user-1")
	})

	t.Run("missing header", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/whoami", nil)

		newRouter().ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		request.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		newRouter().ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("tampered token", func(t *testing.T) {
		token, err := issuer.Issue("user-1")
		require.NoError(t, err)

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		request.Header.Set("Authorization", "Bearer "+token+"x")

		newRouter().ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}
