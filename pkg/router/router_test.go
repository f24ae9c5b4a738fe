package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-character-chat/backend/pkg/health"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCORSMiddlewarePreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(corsMiddleware())
	r.POST("/api/v1/characters/1/chat", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req, _ := http.NewRequest(http.MethodOptions, "/api/v1/characters/1/chat", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestHealthStatus(t *testing.T) {
	assert.Equal(t, health.StatusUp, healthStatus(true))
	assert.Equal(t, health.StatusDown, healthStatus(false))
}
