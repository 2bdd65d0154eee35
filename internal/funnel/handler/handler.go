package handler

import (
	"net/http"

	"signup_funnel_backend/internal/funnel/service"
	"signup_funnel_backend/internal/funnel/transport"
	"signup_funnel_backend/platform/httpkit"
	"signup_funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionTokens issues and reads the bearer token that names a funnel session.
type SessionTokens interface {
	Issue(sessionID uuid.UUID) (string, error)
	ParseToken(raw string) (uuid.UUID, error)
}

// Handler handles HTTP requests for the signup funnel.
type Handler struct {
	svc    *service.Service
	tokens SessionTokens
	val    *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgTokenFailed      = "failed to issue session token"
)

// New creates a new funnel handler.
func New(svc *service.Service, tokens SessionTokens, val *validator.Validator) *Handler {
	return &Handler{svc: svc, tokens: tokens, val: val}
}

// Open starts or restarts a funnel session. A valid bearer token reopens that
// session; anything else starts a new one.
// POST /api/v1/funnel/sessions
func (h *Handler) Open(c *gin.Context) {
	var req transport.OpenSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	var sessionID *uuid.UUID
	if raw, ok := httpkit.ExtractBearerToken(c.GetHeader("Authorization")); ok {
		if id, err := h.tokens.ParseToken(raw); err == nil {
			sessionID = &id
		}
	}

	result, err := h.svc.Open(c.Request.Context(), sessionID, req.LeadID)
	if httpkit.HandleError(c, err) {
		return
	}

	token, err := h.tokens.Issue(result.SessionID)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, msgTokenFailed, nil)
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.OpenSessionResponse{Token: token, Session: result})
}

// Get returns the current session.
// GET /api/v1/funnel/session
func (h *Handler) Get(c *gin.Context) {
	sessionID, ok := httpkit.MustGetSessionID(c)
	if !ok {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), sessionID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Close discards the session.
// DELETE /api/v1/funnel/session
func (h *Handler) Close(c *gin.Context) {
	sessionID, ok := httpkit.MustGetSessionID(c)
	if !ok {
		return
	}

	if err := h.svc.Close(c.Request.Context(), sessionID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitAddress POST /api/v1/funnel/session/address
func (h *Handler) SubmitAddress(c *gin.Context) {
	var req transport.AddressRequest
	sessionID, ok := h.bind(c, &req)
	if !ok {
		return
	}
	h.respond(c)(h.svc.SubmitAddress(c.Request.Context(), sessionID, req))
}

// SubmitContact POST /api/v1/funnel/session/contact
func (h *Handler) SubmitContact(c *gin.Context) {
	var req transport.ContactRequest
	sessionID, ok := h.bind(c, &req)
	if !ok {
		return
	}
	h.respond(c)(h.svc.SubmitContact(c.Request.Context(), sessionID, req))
}

// Continue POST /api/v1/funnel/session/continue
func (h *Handler) Continue(c *gin.Context) {
	sessionID, ok := httpkit.MustGetSessionID(c)
	if !ok {
		return
	}
	h.respond(c)(h.svc.Continue(c.Request.Context(), sessionID))
}

// SelectPlan POST /api/v1/funnel/session/plan
func (h *Handler) SelectPlan(c *gin.Context) {
	var req transport.SelectPlanRequest
	sessionID, ok := h.bind(c, &req)
	if !ok {
		return
	}
	h.respond(c)(h.svc.SelectPlan(c.Request.Context(), sessionID, req))
}

// ConfigureWiFi POST /api/v1/funnel/session/wifi
func (h *Handler) ConfigureWiFi(c *gin.Context) {
	var req transport.WiFiRequest
	sessionID, ok := h.bind(c, &req)
	if !ok {
		return
	}
	h.respond(c)(h.svc.ConfigureWiFi(c.Request.Context(), sessionID, req))
}

// DecideRouter POST /api/v1/funnel/session/router
func (h *Handler) DecideRouter(c *gin.Context) {
	var req transport.RouterDecisionRequest
	sessionID, ok := h.bind(c, &req)
	if !ok {
		return
	}
	h.respond(c)(h.svc.DecideRouter(c.Request.Context(), sessionID, req))
}

// BeginCheckout POST /api/v1/funnel/session/checkout
func (h *Handler) BeginCheckout(c *gin.Context) {
	sessionID, ok := httpkit.MustGetSessionID(c)
	if !ok {
		return
	}
	h.respond(c)(h.svc.BeginCheckout(c.Request.Context(), sessionID))
}

// ConfirmPayment POST /api/v1/funnel/session/payment
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req transport.ConfirmPaymentRequest
	sessionID, ok := h.bind(c, &req)
	if !ok {
		return
	}
	h.respond(c)(h.svc.ConfirmPayment(c.Request.Context(), sessionID, req))
}

// bind reads the session id and a validated JSON body. It writes the error
// response itself and returns false when the request cannot proceed.
func (h *Handler) bind(c *gin.Context, req interface{}) (uuid.UUID, bool) {
	sessionID, ok := httpkit.MustGetSessionID(c)
	if !ok {
		return uuid.Nil, false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return uuid.Nil, false
	}
	return sessionID, true
}

func (h *Handler) respond(c *gin.Context) func(transport.SessionResponse, error) {
	return func(result transport.SessionResponse, err error) {
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, result)
	}
}
