package transport

import (
	"time"

	"github.com/google/uuid"
)

// Requests

type OpenSessionRequest struct {
	LeadID *uuid.UUID `json:"leadId,omitempty"`
}

type AddressRequest struct {
	Line1   string `json:"line1" validate:"required,min=1,max=200"`
	Line2   string `json:"line2,omitempty" validate:"max=200"`
	City    string `json:"city" validate:"required,min=1,max=100"`
	State   string `json:"state" validate:"required,us_state"`
	ZipCode string `json:"zipCode" validate:"required,us_zip"`
}

type ContactRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Phone     string `json:"phone" validate:"required,us_phone"`
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"required,min=1,max=100"`
}

type SelectPlanRequest struct {
	PlanID string `json:"planId" validate:"required,max=50"`
}

// WiFiRequest either skips WiFi setup or carries a network name and password.
// Length rules that depend on Skip are checked by the service.
type WiFiRequest struct {
	Skip     bool   `json:"skip"`
	SSID     string `json:"ssid,omitempty" validate:"max=32"`
	Password string `json:"password,omitempty" validate:"max=63"`
}

type RouterDecisionRequest struct {
	AddRouter *bool `json:"addRouter" validate:"required"`
}

type ConfirmPaymentRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,max=255"`
}

// Responses

type AddressResponse struct {
	Line1            string   `json:"line1"`
	Line2            string   `json:"line2,omitempty"`
	City             string   `json:"city"`
	State            string   `json:"state"`
	ZipCode          string   `json:"zipCode"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	ExternalPlaceID  string   `json:"externalPlaceId,omitempty"`
	FormattedAddress string   `json:"formattedAddress,omitempty"`
}

type ContactResponse struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type WiFiResponse struct {
	SSID        string `json:"ssid,omitempty"`
	HasPassword bool   `json:"hasPassword"`
	Skipped     bool   `json:"skipped"`
}

type SessionResponse struct {
	SessionID                uuid.UUID        `json:"sessionId"`
	Step                     string           `json:"step"`
	Address                  *AddressResponse `json:"address,omitempty"`
	Contact                  *ContactResponse `json:"contact,omitempty"`
	LeadID                   *uuid.UUID       `json:"leadId,omitempty"`
	Qualified                bool             `json:"qualified"`
	QualificationSource      string           `json:"qualificationSource,omitempty"`
	NetworkType              string           `json:"networkType,omitempty"`
	PlanSelected             string           `json:"planSelected,omitempty"`
	RouterAdded              bool             `json:"routerAdded"`
	WiFi                     *WiFiResponse    `json:"wifi,omitempty"`
	TotalAmountDueToday      string           `json:"totalAmountDueToday"`
	TotalAmountDueTodayCents int64            `json:"totalAmountDueTodayCents"`
	PaymentClientSecret      string           `json:"paymentClientSecret,omitempty"`
	PaymentReference         string           `json:"paymentReference,omitempty"`
	CustomerID               *uuid.UUID       `json:"customerId,omitempty"`
	ExpiresAt                *time.Time       `json:"expiresAt,omitempty"`
}

type OpenSessionResponse struct {
	Token   string          `json:"token"`
	Session SessionResponse `json:"session"`
}
