package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"signup_funnel_backend/internal/events"
	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/internal/funnel/session"
	"signup_funnel_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeGeocoder struct {
	address domain.Address
	err     error
	calls   int
	// during runs inside the call, after the session was read.
	during func()
}

func (g *fakeGeocoder) Geocode(_ context.Context, q ports.AddressQuery) (domain.Address, error) {
	g.calls++
	if g.during != nil {
		g.during()
	}
	if g.err != nil {
		return domain.Address{}, g.err
	}
	if g.address.Line1 == "" {
		lat, lon := 30.2672, -97.7431
		return domain.Address{
			Line1:            q.Line1,
			City:             q.City,
			State:            q.State,
			ZipCode:          q.ZipCode,
			Latitude:         &lat,
			Longitude:        &lon,
			ExternalPlaceID:  "osm:123",
			FormattedAddress: q.Line1 + ", " + q.City + ", " + q.State + " " + q.ZipCode,
		}, nil
	}
	return g.address, nil
}

type fakeQualifier struct {
	result ports.QualificationResult
	err    error
	calls  int
}

func (q *fakeQualifier) Check(context.Context, domain.Address) (ports.QualificationResult, error) {
	q.calls++
	return q.result, q.err
}

type fakeLeads struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]ports.LeadSnapshot
	updates     []ports.LeadUpdate
	customers   map[uuid.UUID]uuid.UUID
	createCalls int
	createErr   error
	updateErr   error
	convertErr  error
	convertRefs []string
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{
		leads:     map[uuid.UUID]ports.LeadSnapshot{},
		customers: map[uuid.UUID]uuid.UUID{},
	}
}

func (l *fakeLeads) CreateLead(_ context.Context, contact domain.Contact, address domain.Address, q ports.QualificationResult) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.createCalls++
	if l.createErr != nil {
		return uuid.Nil, l.createErr
	}
	id := uuid.New()
	l.leads[id] = ports.LeadSnapshot{ID: id, Contact: &contact, Address: &address, Qualified: q.Qualified, QualificationSource: q.Source}
	return id, nil
}

func (l *fakeLeads) UpdateLead(_ context.Context, id uuid.UUID, update ports.LeadUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.updateErr != nil {
		return l.updateErr
	}
	if _, ok := l.leads[id]; !ok {
		return ports.ErrLeadNotFound
	}
	l.updates = append(l.updates, update)
	return nil
}

func (l *fakeLeads) GetLead(_ context.Context, id uuid.UUID) (ports.LeadSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lead, ok := l.leads[id]
	if !ok {
		return ports.LeadSnapshot{}, ports.ErrLeadNotFound
	}
	return lead, nil
}

func (l *fakeLeads) ConvertLeadToCustomer(_ context.Context, id uuid.UUID, ref string, _ ports.PlanDetails) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.convertRefs = append(l.convertRefs, ref)
	if l.convertErr != nil {
		return uuid.Nil, l.convertErr
	}
	if existing, ok := l.customers[id]; ok {
		return existing, nil
	}
	customerID := uuid.New()
	l.customers[id] = customerID
	return customerID, nil
}

type fakePayments struct {
	intents      []domain.Cents
	createErr    error
	confirmErr   error
	status       string
	confirmCalls int
	attempts     []int
	// during runs inside the confirm call.
	during func()
}

func (p *fakePayments) CreatePaymentIntent(_ context.Context, amount domain.Cents, _ ports.CustomerInfo) (ports.PaymentIntent, error) {
	if p.createErr != nil {
		return ports.PaymentIntent{}, p.createErr
	}
	p.intents = append(p.intents, amount)
	return ports.PaymentIntent{ClientSecret: "pi_test_" + amount.String() + "_secret_abc"}, nil
}

func (p *fakePayments) ConfirmPayment(_ context.Context, _ string, _ string, attempt int) (ports.PaymentConfirmation, error) {
	p.confirmCalls++
	p.attempts = append(p.attempts, attempt)
	if p.during != nil {
		p.during()
	}
	if p.confirmErr != nil {
		return ports.PaymentConfirmation{}, p.confirmErr
	}
	status := p.status
	if status == "" {
		status = ports.PaymentStatusSucceeded
	}
	return ports.PaymentConfirmation{Status: status, Reference: "pi_test"}, nil
}

type testPrices struct{}

func (testPrices) Plan(id domain.PlanID) (domain.Plan, bool) {
	switch id {
	case "standard":
		return domain.Plan{ID: "standard", Name: "Standard", PriceCents: 8995}, true
	case "premium":
		return domain.Plan{ID: "premium", Name: "Premium", PriceCents: 13995}, true
	case "ultimate":
		return domain.Plan{ID: "ultimate", Name: "Ultimate", PriceCents: 17995, IncludesRouter: true}, true
	}
	return domain.Plan{}, false
}

func (testPrices) RouterPrice() domain.Cents { return 2500 }

type fakeSealer struct{}

func (fakeSealer) Seal(plaintext string) (string, error) { return "sealed:" + plaintext, nil }

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.published))
	for _, e := range b.published {
		names = append(names, e.EventName())
	}
	return names
}

// syncBuffer collects log output written from any goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	svc       *Service
	store     *session.MemoryStore
	geocoder  *fakeGeocoder
	qualifier *fakeQualifier
	leads     *fakeLeads
	payments  *fakePayments
	bus       *recordingBus
	logs      *syncBuffer
	now       time.Time
}

func newHarness() *harness {
	h := &harness{
		store:     session.NewMemoryStore(24*time.Hour, 30*time.Second),
		geocoder:  &fakeGeocoder{},
		qualifier: &fakeQualifier{result: ports.QualificationResult{Qualified: true, NetworkType: "fixed-wireless", Source: "coverage-api"}},
		leads:     newFakeLeads(),
		payments:  &fakePayments{},
		bus:       &recordingBus{},
		logs:      &syncBuffer{},
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.svc = New(Options{
		Sessions:      h.store,
		Geocoder:      h.geocoder,
		Qualifier:     h.qualifier,
		Leads:         h.leads,
		Payments:      h.payments,
		Prices:        testPrices{},
		Sealer:        fakeSealer{},
		EventBus:      h.bus,
		SessionWindow: 2 * time.Hour,
		Log:           &logger.Logger{Logger: slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))},
		Now:           func() time.Time { return h.now },
	})
	return h
}
