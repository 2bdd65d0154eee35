// Package payments charges customers through Stripe PaymentIntents.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/logger"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var (
	// ErrDisabled is returned by every call when no Stripe key is configured.
	ErrDisabled = errors.New("payments are not configured")
	// ErrInvalidClientSecret is returned when a client secret does not embed an intent id.
	ErrInvalidClientSecret = errors.New("invalid payment client secret")
)

// StatusDeclined is reported for card errors; Stripe answers those with an error, not a status.
const StatusDeclined = "declined"

// StatusRequiresAction means the customer must finish authentication (3-D Secure)
// in the browser before the intent can succeed.
const StatusRequiresAction = string(stripe.PaymentIntentStatusRequiresAction)

// Payer identifies who is paying.
type Payer struct {
	Reference string
	Email     string
	Name      string
	Phone     string
}

type Intent struct {
	ID           string
	ClientSecret string
}

type Confirmation struct {
	Status    string
	Reference string
}

// Gateway creates and confirms payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, payer Payer) (Intent, error)
	// Confirm confirms the intent. attempt distinguishes customer retries so a
	// declined attempt does not replay under the same idempotency key.
	Confirm(ctx context.Context, clientSecret string, paymentMethod string, attempt int) (Confirmation, error)
}

// intentAPI is the subset of the Stripe PaymentIntents client the gateway uses.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

type StripeGateway struct {
	intents  intentAPI
	currency string
	timeout  time.Duration // caps each call, Stripe's own retries included
	log      *logger.Logger
}

// NewGateway returns a Stripe gateway, or a disabled one when no key is configured.
func NewGateway(cfg config.PaymentConfig, log *logger.Logger) Gateway {
	if !cfg.IsPaymentEnabled() {
		log.Warn("stripe secret key not set, payments disabled")
		return DisabledGateway{}
	}

	sc := &client.API{}
	sc.Init(cfg.GetStripeSecretKey(), stripe.NewBackends(&http.Client{Timeout: cfg.GetPaymentTimeout()}))
	g := newStripeGateway(sc.PaymentIntents, cfg.GetPaymentCurrency(), log)
	g.timeout = cfg.GetPaymentTimeout()
	return g
}

func (g *StripeGateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func newStripeGateway(intents intentAPI, currency string, log *logger.Logger) *StripeGateway {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{intents: intents, currency: currency, log: log}
}

// CreateIntent is idempotent per payer reference and amount.
func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, payer Payer) (Intent, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Home internet signup"),
	}
	if payer.Email != "" {
		params.ReceiptEmail = stripe.String(payer.Email)
	}
	params.Context = ctx
	params.AddMetadata("lead_id", payer.Reference)
	params.AddMetadata("customer_name", payer.Name)
	params.SetIdempotencyKey(fmt.Sprintf("intent-%s-%d", payer.Reference, amountCents))

	pi, err := g.intents.New(params)
	if err != nil {
		g.log.CollaboratorFailure("stripe", "create_payment_intent", err)
		return Intent{}, err
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Confirm confirms the intent behind clientSecret. Card declines are reported
// as StatusDeclined rather than as an error. An intent that already succeeded,
// or still waits on authentication for the same card, is reported without confirming again.
func (g *StripeGateway) Confirm(ctx context.Context, clientSecret string, paymentMethod string, attempt int) (Confirmation, error) {
	intentID, err := IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return Confirmation{}, err
	}
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	current, err := g.intents.Get(intentID, getParams)
	if err != nil {
		g.log.CollaboratorFailure("stripe", "get_payment_intent", err)
		return Confirmation{}, err
	}
	if current.Status == stripe.PaymentIntentStatusSucceeded ||
		(current.Status == stripe.PaymentIntentStatusRequiresAction && samePaymentMethod(current, paymentMethod)) {
		return Confirmation{Status: string(current.Status), Reference: current.ID}, nil
	}

	params := &stripe.PaymentIntentConfirmParams{}
	if paymentMethod != "" {
		params.PaymentMethod = stripe.String(paymentMethod)
	}
	params.Context = ctx
	params.SetIdempotencyKey(confirmKey(intentID, paymentMethod, attempt))

	pi, err := g.intents.Confirm(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			g.log.Info("payment declined", "intentId", intentID, "code", string(stripeErr.Code))
			return Confirmation{Status: StatusDeclined, Reference: intentID}, nil
		}
		g.log.CollaboratorFailure("stripe", "confirm_payment_intent", err)
		return Confirmation{}, err
	}

	return Confirmation{Status: string(pi.Status), Reference: pi.ID}, nil
}

// samePaymentMethod reports whether confirming with paymentMethod would not change the intent's method.
func samePaymentMethod(pi *stripe.PaymentIntent, paymentMethod string) bool {
	return paymentMethod == "" || (pi.PaymentMethod != nil && pi.PaymentMethod.ID == paymentMethod)
}

func confirmKey(intentID, paymentMethod string, attempt int) string {
	return fmt.Sprintf("confirm-%s-%s-%d", intentID, paymentMethod, attempt)
}

// IntentIDFromClientSecret extracts "pi_123" from "pi_123_secret_abc".
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || id == "" {
		return "", ErrInvalidClientSecret
	}
	return id, nil
}

// DisabledGateway rejects every call.
type DisabledGateway struct{}

func (DisabledGateway) CreateIntent(context.Context, int64, Payer) (Intent, error) {
	return Intent{}, ErrDisabled
}

func (DisabledGateway) Confirm(context.Context, string, string, int) (Confirmation, error) {
	return Confirmation{}, ErrDisabled
}

var (
	_ Gateway = (*StripeGateway)(nil)
	_ Gateway = DisabledGateway{}
)
