package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campusops/ta-scheduler-api/internal/middleware"
	"github.com/campusops/ta-scheduler-api/internal/models"
)

// currentUsername names the authenticated operator for audit fields. Requests
// that bypass the JWT middleware (auth disabled in dev) report "anonymous".
func currentUsername(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return "anonymous"
	}
	claims, ok := value.(*models.Claims)
	if !ok || claims.Username == "" {
		return "anonymous"
	}
	return claims.Username
}
