package events

import (
	"signup_funnel_backend/platform/events"

	"github.com/google/uuid"
)

type (
	Event     = events.Event
	Bus       = events.Bus
	Handler   = events.Handler
	BaseEvent = events.BaseEvent
)

var NewBaseEvent = events.NewBaseEvent

// FunnelLeadCaptured is published when a session's contact data is saved on a lead.
type FunnelLeadCaptured struct {
	BaseEvent
	SessionID        uuid.UUID `json:"sessionId"`
	LeadID           uuid.UUID `json:"leadId"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	FormattedAddress string    `json:"formattedAddress"`
	NetworkType      string    `json:"networkType,omitempty"`
	// Created is false when contact data was written onto a reused lead.
	Created bool `json:"created"`
}

func (e FunnelLeadCaptured) EventName() string { return "funnel.lead.captured" }

// FunnelAddressNotQualified is published when an address routes a session to not-qualified.
// Email is empty when the session has no contact data yet.
type FunnelAddressNotQualified struct {
	BaseEvent
	SessionID        uuid.UUID  `json:"sessionId"`
	LeadID           *uuid.UUID `json:"leadId,omitempty"`
	Email            string     `json:"email,omitempty"`
	FirstName        string     `json:"firstName,omitempty"`
	FormattedAddress string     `json:"formattedAddress"`
	Reason           string     `json:"reason"` // "address_not_found", "not_serviceable"
}

func (e FunnelAddressNotQualified) EventName() string { return "funnel.address.not_qualified" }

// FunnelCheckoutCompleted is published after a paid lead has been converted to a customer.
type FunnelCheckoutCompleted struct {
	BaseEvent
	SessionID        uuid.UUID `json:"sessionId"`
	LeadID           uuid.UUID `json:"leadId"`
	CustomerID       uuid.UUID `json:"customerId"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	FormattedAddress string    `json:"formattedAddress"`
	PlanID           string    `json:"planId"`
	PlanName         string    `json:"planName"`
	PlanPriceCents   int64     `json:"planPriceCents"`
	RouterAdded      bool      `json:"routerAdded"`
	RouterPriceCents int64     `json:"routerPriceCents"`
	AmountCents      int64     `json:"amountCents"`
	PaymentReference string    `json:"paymentReference"`
}

func (e FunnelCheckoutCompleted) EventName() string { return "funnel.checkout.completed" }

