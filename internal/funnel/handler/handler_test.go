package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signup_funnel_backend/internal/events"
	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/internal/funnel/service"
	"signup_funnel_backend/internal/funnel/session"
	"signup_funnel_backend/internal/funnel/transport"
	"signup_funnel_backend/platform/httpkit"
	"signup_funnel_backend/platform/logger"
	"signup_funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubGeocoder struct{}

func (stubGeocoder) Geocode(_ context.Context, q ports.AddressQuery) (domain.Address, error) {
	return domain.Address{Line1: q.Line1, City: q.City, State: q.State, ZipCode: q.ZipCode}, nil
}

type stubQualifier struct{ qualified bool }

func (s stubQualifier) Check(context.Context, domain.Address) (ports.QualificationResult, error) {
	return ports.QualificationResult{Qualified: s.qualified, Source: "stub"}, nil
}

type stubLeads struct{}

func (stubLeads) CreateLead(context.Context, domain.Contact, domain.Address, ports.QualificationResult) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (stubLeads) UpdateLead(context.Context, uuid.UUID, ports.LeadUpdate) error { return nil }
func (stubLeads) GetLead(context.Context, uuid.UUID) (ports.LeadSnapshot, error) {
	return ports.LeadSnapshot{}, ports.ErrLeadNotFound
}
func (stubLeads) ConvertLeadToCustomer(context.Context, uuid.UUID, string, ports.PlanDetails) (uuid.UUID, error) {
	return uuid.New(), nil
}

type stubPrices struct{}

func (stubPrices) Plan(id domain.PlanID) (domain.Plan, bool) {
	if id == "standard" {
		return domain.Plan{ID: id, Name: "Standard", PriceCents: 8995}, true
	}
	return domain.Plan{}, false
}
func (stubPrices) RouterPrice() domain.Cents { return 2500 }

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

func newTestRouter(qualified bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(service.Options{
		Sessions:      session.NewMemoryStore(time.Hour, 10*time.Second),
		Geocoder:      stubGeocoder{},
		Qualifier:     stubQualifier{qualified: qualified},
		Leads:         stubLeads{},
		Prices:        stubPrices{},
		EventBus:      nopBus{},
		SessionWindow: time.Hour,
		Log:           logger.New("development"),
	})
	tokens := session.NewTokens("handler-test-secret", time.Hour)
	h := New(svc, tokens, validator.New())

	engine := gin.New()
	funnel := engine.Group("/api/v1/funnel")
	funnel.POST("/sessions", h.Open)
	group := funnel.Group("/session")
	group.Use(httpkit.SessionRequired(tokens))
	group.GET("", h.Get)
	group.DELETE("", h.Close)
	group.POST("/address", h.SubmitAddress)
	group.POST("/contact", h.SubmitContact)
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func openSession(t *testing.T, engine *gin.Engine) transport.OpenSessionResponse {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/api/v1/funnel/sessions", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp transport.OpenSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestOpenAndWalkToQualificationSuccess(t *testing.T) {
	engine := newTestRouter(true)
	opened := openSession(t, engine)
	if opened.Token == "" || opened.Session.Step != "address" {
		t.Fatalf("unexpected open response %+v", opened)
	}

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/funnel/session/address", opened.Token,
		transport.AddressRequest{Line1: "123 Main St", City: "Austin", State: "TX", ZipCode: "78701"})
	if rec.Code != http.StatusOK {
		t.Fatalf("address: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp transport.SessionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Step != "contact" {
		t.Fatalf("expected contact, got %s", resp.Step)
	}

	rec = doJSON(t, engine, http.MethodPost, "/api/v1/funnel/session/contact", opened.Token,
		transport.ContactRequest{Email: "a@b.com", Phone: "5125551234", FirstName: "A", LastName: "B"})
	if rec.Code != http.StatusOK {
		t.Fatalf("contact: status %d body %s", rec.Code, rec.Body.String())
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Step != "qualification-success" {
		t.Fatalf("expected qualification-success, got %s", resp.Step)
	}
}

func TestNotQualifiedIsOK(t *testing.T) {
	engine := newTestRouter(false)
	opened := openSession(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/funnel/session/address", opened.Token,
		transport.AddressRequest{Line1: "123 Main St", City: "Austin", State: "TX", ZipCode: "78701"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp transport.SessionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Step != "not-qualified" {
		t.Fatalf("expected not-qualified, got %s", resp.Step)
	}
}

func TestValidationErrorsNeverReachService(t *testing.T) {
	engine := newTestRouter(true)
	opened := openSession(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/funnel/session/address", opened.Token,
		transport.AddressRequest{Line1: "123 Main St", City: "Austin", State: "ZZ", ZipCode: "7870"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/funnel/session", opened.Token, nil)
	var resp transport.SessionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Step != "address" {
		t.Fatalf("expected address, got %s", resp.Step)
	}
}

func TestWrongStepIsConflict(t *testing.T) {
	engine := newTestRouter(true)
	opened := openSession(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/funnel/session/contact", opened.Token,
		transport.ContactRequest{Email: "a@b.com", Phone: "5125551234", FirstName: "A", LastName: "B"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestSessionRoutesRequireToken(t *testing.T) {
	engine := newTestRouter(true)

	if rec := doJSON(t, engine, http.MethodGet, "/api/v1/funnel/session", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := doJSON(t, engine, http.MethodGet, "/api/v1/funnel/session", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestReopenWithTokenKeepsSessionAndCloseRemovesIt(t *testing.T) {
	engine := newTestRouter(true)
	opened := openSession(t, engine)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/funnel/sessions", opened.Token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reopen: %d", rec.Code)
	}
	var reopened transport.OpenSessionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &reopened)
	if reopened.Session.SessionID != opened.Session.SessionID {
		t.Fatal("expected the same session to be reopened")
	}

	if rec := doJSON(t, engine, http.MethodDelete, "/api/v1/funnel/session", reopened.Token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("close: %d", rec.Code)
	}
	if rec := doJSON(t, engine, http.MethodGet, "/api/v1/funnel/session", reopened.Token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", rec.Code)
	}
}
