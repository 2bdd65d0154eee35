package adapters

import (
	"context"

	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/internal/payments"
)

// FunnelPayments adapts the payment gateway to the funnel's PaymentGateway port.
type FunnelPayments struct {
	gateway payments.Gateway
}

func NewFunnelPayments(gateway payments.Gateway) *FunnelPayments {
	return &FunnelPayments{gateway: gateway}
}

func (a *FunnelPayments) CreatePaymentIntent(ctx context.Context, amount domain.Cents, customer ports.CustomerInfo) (ports.PaymentIntent, error) {
	intent, err := a.gateway.CreateIntent(ctx, int64(amount), payments.Payer{
		Reference: customer.LeadID.String(),
		Email:     customer.Email,
		Name:      customer.Name,
		Phone:     customer.Phone,
	})
	if err != nil {
		return ports.PaymentIntent{}, err
	}
	return ports.PaymentIntent{ClientSecret: intent.ClientSecret}, nil
}

func (a *FunnelPayments) ConfirmPayment(ctx context.Context, clientSecret string, paymentMethod string, attempt int) (ports.PaymentConfirmation, error) {
	conf, err := a.gateway.Confirm(ctx, clientSecret, paymentMethod, attempt)
	if err != nil {
		return ports.PaymentConfirmation{}, err
	}
	return ports.PaymentConfirmation{Status: conf.Status, Reference: conf.Reference}, nil
}

var _ ports.PaymentGateway = (*FunnelPayments)(nil)
