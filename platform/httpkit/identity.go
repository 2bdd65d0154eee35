// Package httpkit provides HTTP utilities including session identity access.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetSessionID extracts the funnel session ID set by SessionRequired.
func GetSessionID(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(ContextSessionIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// MustGetSessionID extracts the funnel session ID from a Gin context.
// If no session is present, it aborts with 401 Unauthorized and returns false.
func MustGetSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := GetSessionID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}
	return id, true
}
