package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrLeadAlreadyAssigned is returned when a session tries to take a second lead id.
var ErrLeadAlreadyAssigned = errors.New("session already has a lead")

// Address is the service address as entered and, once geocoded, normalized.
type Address struct {
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

// SamePlace reports whether a and b point at the same location. Geocoder place
// ids decide when both carry one; otherwise the first line and zip code must match.
func (a Address) SamePlace(b Address) bool {
	if a.ExternalPlaceID != "" && b.ExternalPlaceID != "" {
		return a.ExternalPlaceID == b.ExternalPlaceID
	}
	line1 := strings.Join(strings.Fields(a.Line1), " ")
	other := strings.Join(strings.Fields(b.Line1), " ")
	zip := strings.TrimSpace(a.ZipCode)
	return line1 != "" && zip != "" && strings.EqualFold(line1, other) && zip == strings.TrimSpace(b.ZipCode)
}

// Contact is the prospective customer's contact data. Phone is E.164.
type Contact struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// WiFiSettings holds the network the customer chose, or records that they skipped it.
// The password is only ever kept sealed.
type WiFiSettings struct {
	SSID           string `json:"ssid,omitempty"`
	SealedPassword string `json:"sealedPassword,omitempty"`
	Skipped        bool   `json:"skipped"`
}

// State is one browser session's progress through the funnel.
// It is owned by the session store and mutated only through the service layer.
type State struct {
	SessionID           uuid.UUID     `json:"sessionId"`
	Generation          int64         `json:"generation"`
	Step                Step          `json:"step"`
	Address             *Address      `json:"address,omitempty"`
	Contact             *Contact      `json:"contact,omitempty"`
	LeadID              *uuid.UUID    `json:"leadId,omitempty"`
	PreQualifiedLead    bool          `json:"preQualifiedLead"`
	QualifiedAddress    *Address      `json:"qualifiedAddress,omitempty"`
	Qualified           bool          `json:"qualified"`
	QualificationSource string        `json:"qualificationSource,omitempty"`
	NetworkType         string        `json:"networkType,omitempty"`
	PlanSelected        PlanID        `json:"planSelected,omitempty"`
	RouterAdded         bool          `json:"routerAdded"`
	WiFi                *WiFiSettings `json:"wifi,omitempty"`
	PaymentClientSecret string        `json:"paymentClientSecret,omitempty"`
	PaymentAmount       Cents         `json:"paymentAmount,omitempty"`
	PaymentReference    string        `json:"paymentReference,omitempty"`
	PaymentAttempt      int           `json:"paymentAttempt,omitempty"`
	CustomerID          *uuid.UUID    `json:"customerId,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	ExpiresAt           *time.Time    `json:"expiresAt,omitempty"`
}

// NewState returns a fresh session at the initial step.
func NewState(sessionID uuid.UUID, generation int64, now time.Time) State {
	return State{
		SessionID:  sessionID,
		Generation: generation,
		Step:       InitialStep,
		CreatedAt:  now,
	}
}

// Reset discards everything but the session identity and bumps the generation,
// so results of calls issued against the old state can be recognised as stale.
func (s State) Reset(now time.Time) State {
	return NewState(s.SessionID, s.Generation+1, now)
}

// Apply moves the session along the edge for outcome.
// The state is left untouched when the edge is rejected.
func (s *State) Apply(outcome Outcome) error {
	next, err := NextStep(s.Step, outcome, s.Qualified)
	if err != nil {
		return err
	}
	s.Step = next
	return nil
}

// AssignLead records the durable lead id. A session holds at most one lead.
func (s *State) AssignLead(id uuid.UUID) error {
	if s.LeadID != nil {
		if *s.LeadID == id {
			return nil
		}
		return ErrLeadAlreadyAssigned
	}
	s.LeadID = &id
	return nil
}

// StartExpiration opens the expiration window. Later calls keep the first deadline.
func (s *State) StartExpiration(now time.Time, window time.Duration) {
	if s.ExpiresAt != nil || window <= 0 {
		return
	}
	deadline := now.Add(window)
	s.ExpiresAt = &deadline
}

// Expired reports whether the expiration window has elapsed at now.
func (s State) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// SelectedPlan resolves the chosen plan against prices.
func (s State) SelectedPlan(prices PriceList) (Plan, bool) {
	if s.PlanSelected == "" {
		return Plan{}, false
	}
	return prices.Plan(s.PlanSelected)
}

// TotalAmountDueToday is derived from the plan and router choice on every call.
// A session without a plan owes nothing yet.
func (s State) TotalAmountDueToday(prices PriceList) (Cents, error) {
	if s.PlanSelected == "" {
		return 0, nil
	}
	return TotalAmountDueToday(prices, s.PlanSelected, s.RouterAdded)
}
