package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func doRequest(configured, provided string) int {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(configured))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if provided != "" {
		req.Header.Set(headerName, provided)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAPIKeyMiddleware(t *testing.T) {
	assert.Equal(t, http.StatusOK, doRequest("", ""), "empty key disables auth")
	assert.Equal(t, http.StatusOK, doRequest("secret", "secret"))
	assert.Equal(t, http.StatusUnauthorized, doRequest("secret", ""))
	assert.Equal(t, http.StatusForbidden, doRequest("secret", "wrong"))
}
