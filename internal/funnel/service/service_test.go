package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/internal/funnel/transport"
	"signup_funnel_backend/platform/apperr"

	"github.com/google/uuid"
)

var austin = transport.AddressRequest{Line1: "123 Main St", City: "Austin", State: "TX", ZipCode: "78701"}

var testContact = transport.ContactRequest{Email: "a@b.com", Phone: "5125551234", FirstName: "A", LastName: "B"}

func (h *harness) open(t *testing.T) uuid.UUID {
	t.Helper()
	resp, err := h.svc.Open(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return resp.SessionID
}

// toCheckout walks a fresh session up to the checkout step.
func (h *harness) toCheckout(t *testing.T, plan string, router bool) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := h.open(t)
	mustStep(t, must(h.svc.SubmitAddress(ctx, id, austin)), domain.StepContact)
	mustStep(t, must(h.svc.SubmitContact(ctx, id, testContact)), domain.StepQualificationSuccess)
	mustStep(t, must(h.svc.Continue(ctx, id)), domain.StepPlanSelection)
	mustStep(t, must(h.svc.SelectPlan(ctx, id, transport.SelectPlanRequest{PlanID: plan})), domain.StepWiFiSetup)
	resp := must(h.svc.ConfigureWiFi(ctx, id, transport.WiFiRequest{SSID: "HomeNet", Password: "supersecret"}))
	if resp.Step == string(domain.StepRouterOffer) {
		mustStep(t, must(h.svc.DecideRouter(ctx, id, transport.RouterDecisionRequest{AddRouter: &router})), domain.StepCheckout)
	}
	return id
}

func must(resp transport.SessionResponse, err error) transport.SessionResponse {
	if err != nil {
		panic(err)
	}
	return resp
}

func mustStep(t *testing.T, resp transport.SessionResponse, want domain.Step) {
	t.Helper()
	if resp.Step != string(want) {
		t.Fatalf("expected step %s, got %s", want, resp.Step)
	}
}

func TestQualifiedAddressThenContact(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.open(t)

	resp, err := h.svc.SubmitAddress(ctx, id, austin)
	if err != nil {
		t.Fatalf("submit address: %v", err)
	}
	mustStep(t, resp, domain.StepContact)
	if !resp.Qualified || resp.QualificationSource != "coverage-api" {
		t.Fatalf("expected qualification recorded, got %+v", resp)
	}
	if resp.ExpiresAt == nil || !resp.ExpiresAt.Equal(h.now.Add(2*time.Hour)) {
		t.Fatalf("expected expiration window to start, got %v", resp.ExpiresAt)
	}

	resp, err = h.svc.SubmitContact(ctx, id, testContact)
	if err != nil {
		t.Fatalf("submit contact: %v", err)
	}
	mustStep(t, resp, domain.StepQualificationSuccess)
	if resp.LeadID == nil {
		t.Fatal("expected a lead id")
	}
	if resp.Contact.Phone != "+15125551234" {
		t.Fatalf("expected E.164 phone, got %q", resp.Contact.Phone)
	}
	if h.leads.createCalls != 1 {
		t.Fatalf("expected one lead, got %d", h.leads.createCalls)
	}
	if names := h.bus.names(); len(names) != 1 || names[0] != "funnel.lead.captured" {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestNotQualifiedAddressIsTerminal(t *testing.T) {
	h := newHarness()
	h.qualifier.result = ports.QualificationResult{Qualified: false, Source: "coverage-api"}
	ctx := context.Background()
	id := h.open(t)

	resp, err := h.svc.SubmitAddress(ctx, id, austin)
	if err != nil {
		t.Fatalf("submit address: %v", err)
	}
	mustStep(t, resp, domain.StepNotQualified)

	_, err = h.svc.SubmitContact(ctx, id, testContact)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict after not-qualified, got %v", err)
	}
	if h.leads.createCalls != 0 {
		t.Fatal("no lead may be created for a not-qualified session")
	}

	got, _ := h.svc.Get(ctx, id)
	mustStep(t, got, domain.StepNotQualified)
}

func TestAddressNotFoundRoutesToNotQualified(t *testing.T) {
	h := newHarness()
	h.geocoder.err = ports.ErrAddressNotFound
	id := h.open(t)

	resp, err := h.svc.SubmitAddress(context.Background(), id, austin)
	if err != nil {
		t.Fatalf("submit address: %v", err)
	}
	mustStep(t, resp, domain.StepNotQualified)
	if h.qualifier.calls != 0 {
		t.Fatal("qualifier must not be called for an unresolvable address")
	}
}

func TestCollaboratorFailureLeavesStepUnchanged(t *testing.T) {
	h := newHarness()
	h.qualifier.err = errors.New("connection reset")
	ctx := context.Background()
	id := h.open(t)

	_, err := h.svc.SubmitAddress(ctx, id, austin)
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	got, _ := h.svc.Get(ctx, id)
	mustStep(t, got, domain.StepAddress)
	if got.ExpiresAt != nil {
		t.Fatal("a failed submission must not start the expiration window")
	}

	h.qualifier.err = nil
	resp, err := h.svc.SubmitAddress(ctx, id, austin)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	mustStep(t, resp, domain.StepContact)
}

func TestLeadIDIsStableAcrossSteps(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.toCheckout(t, "standard", false)

	got, _ := h.svc.Get(ctx, id)
	lead := *got.LeadID
	if h.leads.createCalls != 1 {
		t.Fatalf("expected a single CreateLead, got %d", h.leads.createCalls)
	}
	if len(h.leads.updates) == 0 {
		t.Fatal("expected later steps to update the lead")
	}

	resp, err := h.svc.BeginCheckout(ctx, id)
	if err != nil {
		t.Fatalf("begin checkout: %v", err)
	}
	if *resp.LeadID != lead {
		t.Fatal("lead id changed")
	}
}

func TestPremiumWithRouterTotal(t *testing.T) {
	h := newHarness()
	id := h.toCheckout(t, "premium", true)

	resp, err := h.svc.BeginCheckout(context.Background(), id)
	if err != nil {
		t.Fatalf("begin checkout: %v", err)
	}
	if resp.TotalAmountDueToday != "164.95" || resp.TotalAmountDueTodayCents != 16495 {
		t.Fatalf("expected 164.95, got %s", resp.TotalAmountDueToday)
	}
	if len(h.payments.intents) != 1 || h.payments.intents[0] != 16495 {
		t.Fatalf("expected one intent for 16495, got %v", h.payments.intents)
	}
	if resp.PaymentClientSecret == "" {
		t.Fatal("expected client secret")
	}

	if _, err := h.svc.BeginCheckout(context.Background(), id); err != nil {
		t.Fatalf("begin checkout again: %v", err)
	}
	if len(h.payments.intents) != 1 {
		t.Fatal("an intent for the same amount must be reused")
	}
}

func TestBundledRouterSkipsOffer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.open(t)
	must(h.svc.SubmitAddress(ctx, id, austin))
	must(h.svc.SubmitContact(ctx, id, testContact))
	must(h.svc.Continue(ctx, id))
	must(h.svc.SelectPlan(ctx, id, transport.SelectPlanRequest{PlanID: "ultimate"}))

	resp, err := h.svc.ConfigureWiFi(ctx, id, transport.WiFiRequest{Skip: true})
	if err != nil {
		t.Fatalf("configure wifi: %v", err)
	}
	mustStep(t, resp, domain.StepCheckout)
	if resp.RouterAdded || resp.TotalAmountDueToday != "179.95" {
		t.Fatalf("unexpected totals %+v", resp)
	}
}

func TestPaymentNetworkErrorStaysAtCheckout(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.toCheckout(t, "premium", true)
	must(h.svc.BeginCheckout(ctx, id))

	h.payments.confirmErr = errors.New("network unreachable")
	_, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_visa"})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	got, _ := h.svc.Get(ctx, id)
	mustStep(t, got, domain.StepCheckout)
	if got.CustomerID != nil {
		t.Fatal("no customer may be produced")
	}
	if len(h.leads.convertRefs) != 0 {
		t.Fatal("lead must not be converted")
	}
}

func TestDeclinedPaymentStaysAtCheckout(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.toCheckout(t, "standard", false)
	must(h.svc.BeginCheckout(ctx, id))

	h.payments.status = "requires_payment_method"
	_, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_declined"})
	if !apperr.Is(err, apperr.KindPayment) {
		t.Fatalf("expected payment error, got %v", err)
	}
	got, _ := h.svc.Get(ctx, id)
	mustStep(t, got, domain.StepCheckout)
}

func TestDeclinedRetryUsesNextAttempt(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.toCheckout(t, "standard", false)
	must(h.svc.BeginCheckout(ctx, id))

	h.payments.confirmErr = errors.New("network unreachable")
	if _, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_visa"}); !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	h.payments.confirmErr = nil
	h.payments.status = "declined"
	if _, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_visa"}); !apperr.Is(err, apperr.KindPayment) {
		t.Fatalf("expected payment error, got %v", err)
	}
	h.payments.status = ""
	resp, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_visa"})
	if err != nil {
		t.Fatalf("retry with the same card: %v", err)
	}
	mustStep(t, resp, domain.StepComplete)

	want := []int{1, 1, 2}
	if len(h.payments.attempts) != len(want) {
		t.Fatalf("expected attempts %v, got %v", want, h.payments.attempts)
	}
	for i := range want {
		if h.payments.attempts[i] != want[i] {
			t.Fatalf("expected attempts %v, got %v", want, h.payments.attempts)
		}
	}
}

func TestPaymentRequiringActionIsNotADecline(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.toCheckout(t, "standard", false)
	must(h.svc.BeginCheckout(ctx, id))

	h.payments.status = ports.PaymentStatusRequiresAction
	_, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_threeDSecure2Required"})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindPayment {
		t.Fatalf("expected payment error, got %v", err)
	}
	details, _ := appErr.Details.(map[string]bool)
	if !details["requiresAction"] {
		t.Fatalf("expected requiresAction details, got %#v", appErr.Details)
	}

	got, _ := h.svc.Get(ctx, id)
	mustStep(t, got, domain.StepCheckout)
	if got.PaymentReference != "" || got.PaymentClientSecret == "" {
		t.Fatalf("intent must stay open for authentication, got %+v", got)
	}
}

func TestLostSessionAfterChargeLogsReference(t *testing.T) {
	tests := []struct {
		name       string
		convertErr error
	}{
		{"conversion succeeded", nil},
		{"conversion failed", errors.New("db down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			ctx := context.Background()
			id := h.toCheckout(t, "standard", false)
			lead := *must(h.svc.BeginCheckout(ctx, id)).LeadID

			h.leads.convertErr = tt.convertErr
			h.payments.during = func() {
				if err := h.svc.Close(ctx, id); err != nil {
					t.Errorf("close during call: %v", err)
				}
			}
			if _, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_visa"}); !apperr.Is(err, apperr.KindConflict) {
				t.Fatalf("expected stale conflict, got %v", err)
			}

			logs := h.logs.String()
			if !strings.Contains(logs, `"msg":"unsaved_charge"`) || !strings.Contains(logs, `"payment_reference":"pi_test"`) || !strings.Contains(logs, lead.String()) {
				t.Fatalf("expected the charge to be logged for reconciliation, got %s", logs)
			}
		})
	}
}

func TestConfirmPaymentCompletesAndConverts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.toCheckout(t, "premium", true)
	must(h.svc.BeginCheckout(ctx, id))

	resp, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_visa"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	mustStep(t, resp, domain.StepComplete)
	if resp.CustomerID == nil || resp.PaymentReference != "pi_test" {
		t.Fatalf("expected customer and reference, got %+v", resp)
	}
	if resp.PaymentClientSecret != "" {
		t.Fatal("client secret must not be exposed after payment")
	}

	names := h.bus.names()
	if names[len(names)-1] != "funnel.checkout.completed" {
		t.Fatalf("expected checkout completed event, got %v", names)
	}
}

func TestConversionRetryDoesNotChargeTwice(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.toCheckout(t, "standard", false)
	must(h.svc.BeginCheckout(ctx, id))

	h.leads.convertErr = errors.New("db down")
	_, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_visa"})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	got, _ := h.svc.Get(ctx, id)
	mustStep(t, got, domain.StepCheckout)
	if got.PaymentReference != "pi_test" {
		t.Fatal("payment reference must be kept for the retry")
	}

	h.leads.convertErr = nil
	resp, err := h.svc.ConfirmPayment(ctx, id, transport.ConfirmPaymentRequest{PaymentMethod: "pm_card_visa"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	mustStep(t, resp, domain.StepComplete)
	if h.payments.confirmCalls != 1 {
		t.Fatalf("expected one charge, got %d", h.payments.confirmCalls)
	}
}

func TestReopenYieldsFreshState(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.toCheckout(t, "premium", true)

	resp, err := h.svc.Open(ctx, &id, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if resp.SessionID != id {
		t.Fatal("reopen should keep the session id")
	}
	mustStep(t, resp, domain.StepAddress)
	if resp.Address != nil || resp.Contact != nil || resp.LeadID != nil || resp.PlanSelected != "" || resp.RouterAdded {
		t.Fatalf("reopen leaked state: %+v", resp)
	}
}

func TestReopenWithQualifiedLeadShortcutsToPlanSelection(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	first := h.open(t)
	must(h.svc.SubmitAddress(ctx, first, austin))
	lead := *must(h.svc.SubmitContact(ctx, first, testContact)).LeadID

	resp, err := h.svc.Open(ctx, &first, &lead)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if resp.LeadID == nil || *resp.LeadID != lead {
		t.Fatal("expected the explicitly passed lead to be reused")
	}
	if resp.Address != nil {
		t.Fatal("address must not leak into the new session")
	}

	qualifierCalls := h.qualifier.calls
	resp, err = h.svc.SubmitAddress(ctx, first, austin)
	if err != nil {
		t.Fatalf("submit address: %v", err)
	}
	mustStep(t, resp, domain.StepPlanSelection)
	if h.qualifier.calls != qualifierCalls {
		t.Fatal("qualification must not be re-evaluated for a pre-qualified lead")
	}
	if h.leads.createCalls != 1 {
		t.Fatal("the reused lead must not be duplicated")
	}
}

func TestReopenedLeadWithNewAddressIsQualifiedAgain(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	first := h.open(t)
	must(h.svc.SubmitAddress(ctx, first, austin))
	lead := *must(h.svc.SubmitContact(ctx, first, testContact)).LeadID

	if _, err := h.svc.Open(ctx, &first, &lead); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	h.qualifier.result = ports.QualificationResult{Qualified: false, Source: "coverage-api"}
	h.geocoder.address = domain.Address{
		Line1:           "1 Remote Rd",
		City:            "Nowhere",
		State:           "ND",
		ZipCode:         "58001",
		ExternalPlaceID: "osm:999",
	}
	qualifierCalls := h.qualifier.calls
	remote := transport.AddressRequest{Line1: "1 Remote Rd", City: "Nowhere", State: "ND", ZipCode: "58001"}
	resp, err := h.svc.SubmitAddress(ctx, first, remote)
	if err != nil {
		t.Fatalf("submit address: %v", err)
	}
	mustStep(t, resp, domain.StepNotQualified)
	if h.qualifier.calls != qualifierCalls+1 {
		t.Fatalf("expected the new address to be qualified, qualifier calls %d", h.qualifier.calls-qualifierCalls)
	}
	last := h.leads.updates[len(h.leads.updates)-1]
	if last.Qualification == nil || last.Qualification.Qualified {
		t.Fatalf("expected the lead to record the failed qualification, got %+v", last)
	}
}

func TestOpenWithUnknownLead(t *testing.T) {
	h := newHarness()
	missing := uuid.New()
	if _, err := h.svc.Open(context.Background(), nil, &missing); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.open(t)

	h.geocoder.during = func() {
		if _, err := h.svc.Open(ctx, &id, nil); err != nil {
			t.Errorf("reopen during call: %v", err)
		}
	}
	_, err := h.svc.SubmitAddress(ctx, id, austin)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for a stale result, got %v", err)
	}

	got, _ := h.svc.Get(ctx, id)
	mustStep(t, got, domain.StepAddress)
	if got.Address != nil {
		t.Fatal("stale address must not be applied")
	}
}

func TestConcurrentSubmissionIsRejected(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.open(t)

	var inner error
	h.geocoder.during = func() {
		_, inner = h.svc.SubmitAddress(ctx, id, austin)
	}
	if _, err := h.svc.SubmitAddress(ctx, id, austin); err != nil {
		t.Fatalf("outer submission: %v", err)
	}
	if !apperr.Is(inner, apperr.KindConflict) {
		t.Fatalf("expected in-flight conflict, got %v", inner)
	}
}

func TestExpiredSessionRestarts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.open(t)
	must(h.svc.SubmitAddress(ctx, id, austin))

	h.now = h.now.Add(3 * time.Hour)
	got, err := h.svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	mustStep(t, got, domain.StepAddress)
	if got.Address != nil || got.ExpiresAt != nil {
		t.Fatalf("expired session leaked state: %+v", got)
	}
}

func TestCloseDiscardsSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.open(t)
	if err := h.svc.Close(ctx, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := h.svc.Get(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStepGuards(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.open(t)

	if _, err := h.svc.Continue(ctx, id); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := h.svc.SelectPlan(ctx, id, transport.SelectPlanRequest{PlanID: "gold"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation for unknown plan, got %v", err)
	}
	if _, err := h.svc.BeginCheckout(ctx, id); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestWiFiValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	id := h.open(t)
	must(h.svc.SubmitAddress(ctx, id, austin))
	must(h.svc.SubmitContact(ctx, id, testContact))
	must(h.svc.Continue(ctx, id))
	must(h.svc.SelectPlan(ctx, id, transport.SelectPlanRequest{PlanID: "standard"}))

	_, err := h.svc.ConfigureWiFi(ctx, id, transport.WiFiRequest{SSID: "HomeNet", Password: "short"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	resp := must(h.svc.ConfigureWiFi(ctx, id, transport.WiFiRequest{SSID: "HomeNet", Password: "longenough"}))
	mustStep(t, resp, domain.StepRouterOffer)
	if resp.WiFi == nil || !resp.WiFi.HasPassword || resp.WiFi.SSID != "HomeNet" {
		t.Fatalf("unexpected wifi %+v", resp.WiFi)
	}
}
