// Package catalog provides the plan catalog bounded context module.
package catalog

import (
	"signup_funnel_backend/internal/catalog/handler"
	"signup_funnel_backend/internal/catalog/repository"
	apphttp "signup_funnel_backend/internal/http"
	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/logger"
)

// Module is the catalog bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	catalog *repository.Catalog
}

// NewModule loads the catalog named by cfg, falling back to the built-in plans.
func NewModule(cfg config.CatalogConfig, log *logger.Logger) (*Module, error) {
	c, err := repository.Load(cfg.GetPlanCatalogPath())
	if err != nil {
		return nil, err
	}
	log.Info("plan catalog loaded", "plans", len(c.Plans()), "routerPrice", c.RouterPrice().String())

	return &Module{
		handler: handler.New(c),
		catalog: c,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "catalog"
}

// Catalog returns the loaded plans for use as the funnel's price list.
func (m *Module) Catalog() *repository.Catalog {
	return m.catalog
}

// RegisterRoutes mounts catalog routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.GET("/plans", m.handler.ListPlans)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
