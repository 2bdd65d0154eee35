// Package funnel provides the signup funnel bounded context module.
package funnel

import (
	"signup_funnel_backend/internal/funnel/handler"
	"signup_funnel_backend/internal/funnel/service"
	apphttp "signup_funnel_backend/internal/http"
	"signup_funnel_backend/platform/httpkit"
	"signup_funnel_backend/platform/validator"
)

// Module is the funnel bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the funnel module around an already wired service.
func NewModule(svc *service.Service, tokens handler.SessionTokens, val *validator.Validator) *Module {
	return &Module{
		handler: handler.New(svc, tokens, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "funnel"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts funnel routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Funnel.POST("/sessions", m.handler.Open)

	sessionGroup := ctx.Funnel.Group("/session")
	sessionGroup.Use(httpkit.SessionRequired(ctx.SessionTokens))
	sessionGroup.GET("", m.handler.Get)
	sessionGroup.DELETE("", m.handler.Close)
	sessionGroup.POST("/address", m.handler.SubmitAddress)
	sessionGroup.POST("/contact", m.handler.SubmitContact)
	sessionGroup.POST("/continue", m.handler.Continue)
	sessionGroup.POST("/plan", m.handler.SelectPlan)
	sessionGroup.POST("/wifi", m.handler.ConfigureWiFi)
	sessionGroup.POST("/router", m.handler.DecideRouter)
	sessionGroup.POST("/checkout", m.handler.BeginCheckout)
	sessionGroup.POST("/payment", m.handler.ConfirmPayment)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
