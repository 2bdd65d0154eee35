package maps

import (
	"net/http"
	"strings"

	"signup_funnel_backend/platform/apperr"
	"signup_funnel_backend/platform/httpkit"
	"signup_funnel_backend/platform/sanitize"

	"github.com/gin-gonic/gin"
)

const minQueryLength = 3

// Handler serves address autocomplete for the funnel's address form.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// LookupAddress handles GET /api/v1/maps/address-lookup?q=...
// It always answers with a list; an upstream failure is a retryable 502.
func (h *Handler) LookupAddress(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "query 'q' is required (min 3 chars)", nil)
		return
	}
	query := sanitize.Text(req.Query)
	if len([]rune(strings.TrimSpace(query))) < minQueryLength {
		httpkit.Error(c, http.StatusBadRequest, "query 'q' is required (min 3 chars)", nil)
		return
	}

	results, err := h.svc.SearchAddress(c.Request.Context(), query)
	if err != nil {
		httpkit.HandleError(c, apperr.Upstream("address lookup service unavailable", err))
		return
	}
	if results == nil {
		results = []AddressSuggestion{}
	}

	httpkit.OK(c, results)
}
