package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"signup_funnel_backend/platform/logger"

	"github.com/stripe/stripe-go/v76"
)

type fakeIntents struct {
	created    []*stripe.PaymentIntentParams
	confirmed  []string
	keys       []string
	confirmErr error
	status     stripe.PaymentIntentStatus
	// current is the status Get reports before confirming.
	current stripe.PaymentIntentStatus
	getErr  error
	// deadlines records the context deadline of each confirm call.
	deadlines []time.Time
}

func (f *fakeIntents) Get(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	status := f.current
	if status == "" {
		status = stripe.PaymentIntentStatusRequiresPaymentMethod
	}
	return &stripe.PaymentIntent{ID: id, Status: status, PaymentMethod: &stripe.PaymentMethod{ID: "pm_card_visa"}}, nil
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = append(f.created, params)
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret_abc"}, nil
}

func (f *fakeIntents) Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	f.confirmed = append(f.confirmed, id)
	if params.IdempotencyKey != nil {
		f.keys = append(f.keys, *params.IdempotencyKey)
	}
	if params.Context != nil {
		if deadline, ok := params.Context.Deadline(); ok {
			f.deadlines = append(f.deadlines, deadline)
		}
	}
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &stripe.PaymentIntent{ID: id, Status: f.status}, nil
}

func TestCreateIntent(t *testing.T) {
	fake := &fakeIntents{}
	g := newStripeGateway(fake, "usd", logger.New("development"))

	intent, err := g.CreateIntent(context.Background(), 16495, Payer{Reference: "lead-1", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if intent.ClientSecret != "pi_123_secret_abc" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	params := fake.created[0]
	if *params.Amount != 16495 || *params.Currency != "usd" {
		t.Fatalf("unexpected amount %d %s", *params.Amount, *params.Currency)
	}
	if params.IdempotencyKey == nil || *params.IdempotencyKey != "intent-lead-1-16495" {
		t.Fatalf("unexpected idempotency key %v", params.IdempotencyKey)
	}
	if params.Metadata["lead_id"] != "lead-1" {
		t.Fatalf("expected lead metadata, got %v", params.Metadata)
	}
}

func TestConfirmSucceeded(t *testing.T) {
	fake := &fakeIntents{status: stripe.PaymentIntentStatusSucceeded}
	g := newStripeGateway(fake, "usd", logger.New("development"))

	conf, err := g.Confirm(context.Background(), "pi_123_secret_abc", "pm_card_visa", 1)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if conf.Status != "succeeded" || conf.Reference != "pi_123" {
		t.Fatalf("unexpected confirmation %+v", conf)
	}
	if fake.confirmed[0] != "pi_123" {
		t.Fatalf("confirmed wrong intent %v", fake.confirmed)
	}
}

func TestConfirmCardDeclined(t *testing.T) {
	fake := &fakeIntents{confirmErr: &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined}}
	g := newStripeGateway(fake, "usd", logger.New("development"))

	conf, err := g.Confirm(context.Background(), "pi_123_secret_abc", "pm_card_chargeDeclined", 1)
	if err != nil {
		t.Fatalf("expected decline as status, got %v", err)
	}
	if conf.Status != StatusDeclined {
		t.Fatalf("unexpected status %q", conf.Status)
	}
}

func TestConfirmNetworkError(t *testing.T) {
	boom := errors.New("connection reset")
	g := newStripeGateway(&fakeIntents{confirmErr: boom}, "usd", logger.New("development"))

	if _, err := g.Confirm(context.Background(), "pi_123_secret_abc", "", 1); !errors.Is(err, boom) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestConfirmRetryAfterDeclineUsesNewKey(t *testing.T) {
	fake := &fakeIntents{confirmErr: &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined}}
	g := newStripeGateway(fake, "usd", logger.New("development"))

	if _, err := g.Confirm(context.Background(), "pi_123_secret_abc", "pm_card_visa", 1); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	fake.confirmErr = nil
	fake.status = stripe.PaymentIntentStatusSucceeded
	conf, err := g.Confirm(context.Background(), "pi_123_secret_abc", "pm_card_visa", 2)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if conf.Status != "succeeded" {
		t.Fatalf("unexpected status %q", conf.Status)
	}
	if len(fake.keys) != 2 || fake.keys[0] == fake.keys[1] {
		t.Fatalf("expected distinct idempotency keys, got %v", fake.keys)
	}
	if fake.keys[1] != "confirm-pi_123-pm_card_visa-2" {
		t.Fatalf("unexpected key %q", fake.keys[1])
	}
}

func TestConfirmSkipsSettledIntents(t *testing.T) {
	tests := []struct {
		name    string
		current stripe.PaymentIntentStatus
		want    string
	}{
		{"already succeeded", stripe.PaymentIntentStatusSucceeded, "succeeded"},
		{"awaiting authentication", stripe.PaymentIntentStatusRequiresAction, StatusRequiresAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeIntents{current: tt.current}
			g := newStripeGateway(fake, "usd", logger.New("development"))

			conf, err := g.Confirm(context.Background(), "pi_123_secret_abc", "pm_card_visa", 1)
			if err != nil {
				t.Fatalf("confirm: %v", err)
			}
			if conf.Status != tt.want || conf.Reference != "pi_123" {
				t.Fatalf("unexpected confirmation %+v", conf)
			}
			if len(fake.confirmed) != 0 {
				t.Fatalf("intent must not be confirmed again, got %v", fake.confirmed)
			}
		})
	}
}

func TestConfirmWithNewCardWhileAwaitingAuthentication(t *testing.T) {
	fake := &fakeIntents{current: stripe.PaymentIntentStatusRequiresAction, status: stripe.PaymentIntentStatusSucceeded}
	g := newStripeGateway(fake, "usd", logger.New("development"))

	conf, err := g.Confirm(context.Background(), "pi_123_secret_abc", "pm_card_mastercard", 2)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if conf.Status != "succeeded" || len(fake.confirmed) != 1 {
		t.Fatalf("expected the new card to be confirmed, got %+v after %d confirms", conf, len(fake.confirmed))
	}
}

func TestConfirmReturnsRequiresAction(t *testing.T) {
	fake := &fakeIntents{status: stripe.PaymentIntentStatusRequiresAction}
	g := newStripeGateway(fake, "usd", logger.New("development"))

	conf, err := g.Confirm(context.Background(), "pi_123_secret_abc", "pm_card_threeDSecure2Required", 1)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if conf.Status != StatusRequiresAction || conf.Status == StatusDeclined {
		t.Fatalf("unexpected status %q", conf.Status)
	}
}

func TestConfirmIsBoundedByTimeout(t *testing.T) {
	fake := &fakeIntents{status: stripe.PaymentIntentStatusSucceeded}
	g := newStripeGateway(fake, "usd", logger.New("development"))
	g.timeout = 5 * time.Second

	start := time.Now()
	if _, err := g.Confirm(context.Background(), "pi_123_secret_abc", "pm_card_visa", 1); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(fake.deadlines) != 1 {
		t.Fatal("expected the confirm call to carry a deadline")
	}
	if fake.deadlines[0].After(start.Add(5*time.Second + time.Second)) {
		t.Fatalf("deadline %s exceeds the payment timeout", fake.deadlines[0].Sub(start))
	}
}

func TestIntentIDFromClientSecret(t *testing.T) {
	if _, err := IntentIDFromClientSecret("garbage"); !errors.Is(err, ErrInvalidClientSecret) {
		t.Fatalf("expected ErrInvalidClientSecret, got %v", err)
	}
	id, err := IntentIDFromClientSecret("pi_9_secret_x")
	if err != nil || id != "pi_9" {
		t.Fatalf("unexpected id %q %v", id, err)
	}
}

func TestDisabledGateway(t *testing.T) {
	var g Gateway = DisabledGateway{}
	if _, err := g.CreateIntent(context.Background(), 100, Payer{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
