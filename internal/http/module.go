// Package http defines how feature modules plug their routes into the server.
package http

import (
	"signup_funnel_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a feature that mounts its own routes.
type Module interface {
	// Name is used in startup logs.
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups and shared middleware a module may mount on.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without rate limiting.
	V1 *gin.RouterGroup
	// Public is /api/v1 behind the per-IP limiter.
	Public *gin.RouterGroup
	// Funnel is /api/v1/funnel behind the per-IP limiter. Routes that need a
	// session add httpkit.SessionRequired(SessionTokens) themselves.
	Funnel            *gin.RouterGroup
	SessionTokens     httpkit.SessionTokenParser
	PublicRateLimiter *httpkit.IPRateLimiter
}
