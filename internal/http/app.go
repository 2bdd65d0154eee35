package http

import (
	"context"

	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/httpkit"
	"signup_funnel_backend/platform/logger"
)

// HealthChecker is pinged by GET /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is what cmd/api hands to the router once every module is built.
type App struct {
	Config        config.HTTPConfig
	Logger        *logger.Logger
	Health        HealthChecker
	SessionTokens httpkit.SessionTokenParser
	Modules       []Module
}
