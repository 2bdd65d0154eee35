package maps

import (
	apphttp "signup_funnel_backend/internal/http"
	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/logger"
)

// Module wires the maps address lookup HTTP routes.
type Module struct {
	handler *Handler
	service *Service
}

func NewModule(cfg config.GeocoderConfig, log *logger.Logger) *Module {
	svc := NewService(cfg, log)
	h := NewHandler(svc)
	return &Module{handler: h, service: svc}
}

func (m *Module) Name() string {
	return "maps"
}

// Service exposes the geocoder for the funnel's address step.
func (m *Module) Service() *Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Public.Group("/maps")
	group.GET("/address-lookup", m.handler.LookupAddress)
}

var _ apphttp.Module = (*Module)(nil)
