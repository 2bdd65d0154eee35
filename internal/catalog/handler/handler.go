package handler

import (
	"signup_funnel_backend/internal/catalog/repository"
	"signup_funnel_backend/internal/catalog/transport"
	"signup_funnel_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler serves the public plan catalog.
type Handler struct {
	catalog *repository.Catalog
}

// New creates a new catalog handler.
func New(c *repository.Catalog) *Handler {
	return &Handler{catalog: c}
}

// ListPlans GET /api/v1/plans
func (h *Handler) ListPlans(c *gin.Context) {
	plans := h.catalog.Plans()
	resp := transport.CatalogResponse{
		Currency:         h.catalog.Currency(),
		RouterPrice:      h.catalog.RouterPrice().String(),
		RouterPriceCents: int64(h.catalog.RouterPrice()),
		Plans:            make([]transport.PlanResponse, 0, len(plans)),
	}
	for _, p := range plans {
		resp.Plans = append(resp.Plans, transport.PlanResponse{
			ID:             string(p.ID),
			Name:           p.Name,
			Description:    p.Description,
			DownloadMbps:   p.DownloadMbps,
			UploadMbps:     p.UploadMbps,
			Price:          p.PriceCents.String(),
			PriceCents:     int64(p.PriceCents),
			IncludesRouter: p.IncludesRouter,
		})
	}
	httpkit.OK(c, resp)
}
