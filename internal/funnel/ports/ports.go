// Package ports defines the interfaces the funnel requires from external systems.
// Adapters in internal/adapters translate the concrete modules (maps, leads,
// payments, qualification) into these shapes so the funnel only sees the data it needs.
package ports

import (
	"context"
	"errors"

	"signup_funnel_backend/internal/funnel/domain"

	"github.com/google/uuid"
)

var (
	// ErrAddressNotFound is returned by a Geocoder when the address cannot be resolved.
	ErrAddressNotFound = errors.New("address not found")
	// ErrLeadNotFound is returned by a LeadStore for an unknown lead id.
	ErrLeadNotFound = errors.New("lead not found")
)

// AddressQuery is the address as the customer entered it.
type AddressQuery struct {
	Line1   string
	Line2   string
	City    string
	State   string
	ZipCode string
}

// Geocoder resolves a free-form address into a normalized one.
type Geocoder interface {
	Geocode(ctx context.Context, query AddressQuery) (domain.Address, error)
}

// QualificationResult is the availability answer for an address.
type QualificationResult struct {
	Qualified   bool
	NetworkType string
	Source      string
}

// QualificationChecker decides whether service is available at an address.
type QualificationChecker interface {
	Check(ctx context.Context, address domain.Address) (QualificationResult, error)
}

// LeadUpdate carries the fields to write. Nil fields are left untouched so
// repeating the same update is harmless.
type LeadUpdate struct {
	Contact       *domain.Contact
	Address       *domain.Address
	Qualification *QualificationResult
	PlanID        *domain.PlanID
	RouterAdded   *bool
	WiFi          *domain.WiFiSettings
}

// LeadSnapshot is what the funnel needs to know about an existing lead.
type LeadSnapshot struct {
	ID                  uuid.UUID
	Contact             *domain.Contact
	Address             *domain.Address
	Qualified           bool
	QualificationSource string
	NetworkType         string
	Converted           bool
}

// PlanDetails describes what the customer bought.
type PlanDetails struct {
	PlanID      domain.PlanID
	PlanName    string
	RouterAdded bool
	AmountCents domain.Cents
}

// LeadStore is the durable system of record for leads and customers.
type LeadStore interface {
	CreateLead(ctx context.Context, contact domain.Contact, address domain.Address, qualification QualificationResult) (uuid.UUID, error)
	UpdateLead(ctx context.Context, leadID uuid.UUID, update LeadUpdate) error
	GetLead(ctx context.Context, leadID uuid.UUID) (LeadSnapshot, error)
	// ConvertLeadToCustomer is idempotent on leadID: a repeated call returns the existing customer.
	ConvertLeadToCustomer(ctx context.Context, leadID uuid.UUID, paymentReference string, plan PlanDetails) (uuid.UUID, error)
}

// CustomerInfo identifies the payer to the payment provider.
type CustomerInfo struct {
	LeadID uuid.UUID
	Email  string
	Name   string
	Phone  string
}

// PaymentIntent is a pending charge the browser completes with the client secret.
type PaymentIntent struct {
	ClientSecret string
}

const (
	// PaymentStatusSucceeded is the only status that completes a checkout.
	PaymentStatusSucceeded = "succeeded"
	// PaymentStatusRequiresAction means the customer has to authenticate the
	// charge in the browser before confirming again.
	PaymentStatusRequiresAction = "requires_action"
)

// PaymentConfirmation is the result of confirming a payment intent.
type PaymentConfirmation struct {
	Status    string
	Reference string
}

// PaymentGateway authorizes payments.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amount domain.Cents, customer CustomerInfo) (PaymentIntent, error)
	// ConfirmPayment charges the intent. attempt numbers the customer's tries at
	// checkout; a transport retry of the same try reuses the same number.
	ConfirmPayment(ctx context.Context, clientSecret string, paymentMethod string, attempt int) (PaymentConfirmation, error)
}
