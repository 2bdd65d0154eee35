package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"signup_funnel_backend/internal/events"
	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/internal/funnel/transport"
	"signup_funnel_backend/platform/apperr"
	"signup_funnel_backend/platform/phone"
	"signup_funnel_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	minWiFiPasswordLength = 8
	maxWiFiPasswordLength = 63
	maxSSIDLength         = 32
)

// SubmitAddress geocodes and qualifies the address. An address that cannot be
// resolved, or is not serviceable, ends the funnel at not-qualified.
func (s *Service) SubmitAddress(ctx context.Context, sessionID uuid.UUID, req transport.AddressRequest) (transport.SessionResponse, error) {
	query := ports.AddressQuery{
		Line1:   sanitize.Text(req.Line1),
		Line2:   sanitize.Text(req.Line2),
		City:    sanitize.Text(req.City),
		State:   strings.ToUpper(strings.TrimSpace(req.State)),
		ZipCode: strings.TrimSpace(req.ZipCode),
	}

	return s.advance(ctx, sessionID, domain.StepAddress, func(ctx context.Context, st *domain.State) (stepResult, error) {
		normalized, err := s.geocoder.Geocode(ctx, query)
		if errors.Is(err, ports.ErrAddressNotFound) {
			st.Address = addressFromQuery(query)
			st.StartExpiration(s.now(), s.window)
			return stepResult{
				outcome: domain.OutcomeNotQualified,
				events:  []events.Event{notQualifiedEvent(*st, "address_not_found")},
			}, nil
		}
		if err != nil {
			s.log.WithContext(ctx).CollaboratorFailure("geocoder", "geocode", err)
			return stepResult{}, apperr.Upstream("we could not look up that address, please try again", err)
		}
		if normalized.Line2 == "" {
			normalized.Line2 = query.Line2
		}
		st.Address = &normalized

		if st.PreQualifiedLead && st.LeadID != nil && st.QualifiedAddress != nil && normalized.SamePlace(*st.QualifiedAddress) {
			if err := s.leads.UpdateLead(ctx, *st.LeadID, ports.LeadUpdate{Address: st.Address}); err != nil {
				s.log.WithContext(ctx).CollaboratorFailure("leads", "update_lead", err)
				return stepResult{}, apperr.Upstream("we could not save your address, please try again", err)
			}
			st.StartExpiration(s.now(), s.window)
			return stepResult{outcome: domain.OutcomePreQualified}, nil
		}
		// A different address invalidates the lead's earlier qualification.
		st.PreQualifiedLead = false
		st.QualifiedAddress = nil

		result, err := s.qualifier.Check(ctx, normalized)
		if err != nil {
			s.log.WithContext(ctx).CollaboratorFailure("qualification", "check", err)
			return stepResult{}, apperr.Upstream("we could not check availability, please try again", err)
		}
		st.QualificationSource = result.Source
		st.NetworkType = result.NetworkType
		st.Qualified = result.Qualified

		if st.LeadID != nil {
			update := ports.LeadUpdate{Address: st.Address, Qualification: &result}
			if err := s.leads.UpdateLead(ctx, *st.LeadID, update); err != nil {
				s.log.WithContext(ctx).CollaboratorFailure("leads", "update_lead", err)
				return stepResult{}, apperr.Upstream("we could not save your address, please try again", err)
			}
		}

		st.StartExpiration(s.now(), s.window)
		if !result.Qualified {
			return stepResult{
				outcome: domain.OutcomeNotQualified,
				events:  []events.Event{notQualifiedEvent(*st, "not_serviceable")},
			}, nil
		}
		return stepResult{outcome: domain.OutcomeQualified}, nil
	})
}

// SubmitContact persists the contact on the session's lead, creating the lead
// on first use. A session never creates a second lead.
func (s *Service) SubmitContact(ctx context.Context, sessionID uuid.UUID, req transport.ContactRequest) (transport.SessionResponse, error) {
	contact := domain.Contact{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     phone.NormalizeE164(req.Phone),
		FirstName: sanitize.Text(req.FirstName),
		LastName:  sanitize.Text(req.LastName),
	}

	return s.advance(ctx, sessionID, domain.StepContact, func(ctx context.Context, st *domain.State) (stepResult, error) {
		if st.Address == nil {
			return stepResult{}, apperr.Conflict("the address step has not been completed")
		}

		created := false
		if st.LeadID == nil {
			qualification := ports.QualificationResult{
				Qualified:   st.Qualified,
				NetworkType: st.NetworkType,
				Source:      st.QualificationSource,
			}
			leadID, err := s.leads.CreateLead(ctx, contact, *st.Address, qualification)
			if err != nil {
				s.log.WithContext(ctx).CollaboratorFailure("leads", "create_lead", err)
				return stepResult{}, apperr.Upstream("we could not save your details, please try again", err)
			}
			if err := st.AssignLead(leadID); err != nil {
				return stepResult{}, apperr.Conflict("session already has a lead")
			}
			created = true
		} else if err := s.leads.UpdateLead(ctx, *st.LeadID, ports.LeadUpdate{Contact: &contact}); err != nil {
			s.log.WithContext(ctx).CollaboratorFailure("leads", "update_lead", err)
			return stepResult{}, apperr.Upstream("we could not save your details, please try again", err)
		}
		st.Contact = &contact

		return stepResult{
			outcome: domain.OutcomeLeadSaved,
			events: []events.Event{events.FunnelLeadCaptured{
				BaseEvent:        events.NewBaseEvent(),
				SessionID:        st.SessionID,
				LeadID:           *st.LeadID,
				Email:            contact.Email,
				FirstName:        contact.FirstName,
				LastName:         contact.LastName,
				FormattedAddress: formattedAddress(st.Address),
				NetworkType:      st.NetworkType,
				Created:          created,
			}},
		}, nil
	})
}

// Continue leaves the qualification success screen.
func (s *Service) Continue(ctx context.Context, sessionID uuid.UUID) (transport.SessionResponse, error) {
	return s.advance(ctx, sessionID, domain.StepQualificationSuccess, func(context.Context, *domain.State) (stepResult, error) {
		return stepResult{outcome: domain.OutcomeContinue}, nil
	})
}

// SelectPlan records the chosen plan. A plan that bundles a router clears the add-on.
func (s *Service) SelectPlan(ctx context.Context, sessionID uuid.UUID, req transport.SelectPlanRequest) (transport.SessionResponse, error) {
	planID := domain.PlanID(strings.TrimSpace(req.PlanID))
	plan, ok := s.prices.Plan(planID)
	if !ok {
		return transport.SessionResponse{}, apperr.Validation("unknown plan").WithDetails(map[string]string{"planId": "not a known plan"})
	}

	return s.advance(ctx, sessionID, domain.StepPlanSelection, func(ctx context.Context, st *domain.State) (stepResult, error) {
		st.PlanSelected = plan.ID
		if plan.IncludesRouter {
			st.RouterAdded = false
		}
		if err := s.updateLead(ctx, st, ports.LeadUpdate{PlanID: &st.PlanSelected, RouterAdded: &st.RouterAdded}); err != nil {
			return stepResult{}, err
		}
		return stepResult{outcome: domain.OutcomePlanChosen}, nil
	})
}

// ConfigureWiFi stores the sealed network credentials, or records a skip.
func (s *Service) ConfigureWiFi(ctx context.Context, sessionID uuid.UUID, req transport.WiFiRequest) (transport.SessionResponse, error) {
	settings := domain.WiFiSettings{Skipped: req.Skip}
	if !req.Skip {
		ssid := strings.TrimSpace(req.SSID)
		if details := validateWiFi(ssid, req.Password); len(details) > 0 {
			return transport.SessionResponse{}, apperr.Validation("invalid WiFi settings").WithDetails(details)
		}
		sealed, err := s.sealer.Seal(req.Password)
		if err != nil {
			return transport.SessionResponse{}, apperr.Wrap(apperr.KindInternal, "failed to protect WiFi password", err)
		}
		settings.SSID = ssid
		settings.SealedPassword = sealed
	}

	return s.advance(ctx, sessionID, domain.StepWiFiSetup, func(ctx context.Context, st *domain.State) (stepResult, error) {
		st.WiFi = &settings
		if err := s.updateLead(ctx, st, ports.LeadUpdate{WiFi: st.WiFi}); err != nil {
			return stepResult{}, err
		}

		if plan, ok := st.SelectedPlan(s.prices); ok && plan.IncludesRouter {
			return stepResult{outcome: domain.OutcomeRouterIncluded}, nil
		}
		return stepResult{outcome: domain.OutcomeWiFiConfigured}, nil
	})
}

// DecideRouter records whether the router add-on was taken.
func (s *Service) DecideRouter(ctx context.Context, sessionID uuid.UUID, req transport.RouterDecisionRequest) (transport.SessionResponse, error) {
	addRouter := req.AddRouter != nil && *req.AddRouter

	return s.advance(ctx, sessionID, domain.StepRouterOffer, func(ctx context.Context, st *domain.State) (stepResult, error) {
		st.RouterAdded = addRouter
		if err := s.updateLead(ctx, st, ports.LeadUpdate{RouterAdded: &st.RouterAdded}); err != nil {
			return stepResult{}, err
		}
		return stepResult{outcome: domain.OutcomeRouterDecided}, nil
	})
}

// BeginCheckout creates the payment intent for the current total. An intent
// created for the same amount is reused.
func (s *Service) BeginCheckout(ctx context.Context, sessionID uuid.UUID) (transport.SessionResponse, error) {
	return s.advance(ctx, sessionID, domain.StepCheckout, func(ctx context.Context, st *domain.State) (stepResult, error) {
		if st.PaymentReference != "" {
			return stepResult{}, nil
		}

		amount, err := st.TotalAmountDueToday(s.prices)
		if err != nil {
			return stepResult{}, apperr.Conflict("the selected plan is no longer available")
		}
		if st.PaymentClientSecret != "" && st.PaymentAmount == amount {
			return stepResult{}, nil
		}

		intent, err := s.payments.CreatePaymentIntent(ctx, amount, customerInfo(*st))
		if err != nil {
			s.log.WithContext(ctx).CollaboratorFailure("payments", "create_payment_intent", err)
			return stepResult{}, apperr.Upstream("we could not start the payment, please try again", err)
		}
		st.PaymentClientSecret = intent.ClientSecret
		st.PaymentAmount = amount
		return stepResult{}, nil
	})
}

// ConfirmPayment charges the customer and converts the lead. A payment that
// succeeded is remembered before conversion, so retrying a failed conversion
// does not charge again.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID uuid.UUID, req transport.ConfirmPaymentRequest) (transport.SessionResponse, error) {
	paymentMethod := strings.TrimSpace(req.PaymentMethod)

	return s.advance(ctx, sessionID, domain.StepCheckout, func(ctx context.Context, st *domain.State) (stepResult, error) {
		if st.PaymentClientSecret == "" {
			return stepResult{}, apperr.Conflict("checkout has not been started")
		}
		if st.LeadID == nil {
			return stepResult{}, apperr.Conflict("session has no lead to convert")
		}
		plan, ok := st.SelectedPlan(s.prices)
		if !ok {
			return stepResult{}, apperr.Conflict("the selected plan is no longer available")
		}

		if st.PaymentReference == "" {
			// A failed call is not saved, so its retry reuses the attempt number.
			st.PaymentAttempt++
			confirmation, err := s.payments.ConfirmPayment(ctx, st.PaymentClientSecret, paymentMethod, st.PaymentAttempt)
			if err != nil {
				s.log.WithContext(ctx).CollaboratorFailure("payments", "confirm_payment", err)
				return stepResult{}, apperr.Upstream("we could not confirm the payment, please try again", err)
			}
			switch confirmation.Status {
			case ports.PaymentStatusSucceeded:
				st.PaymentReference = confirmation.Reference
			case ports.PaymentStatusRequiresAction:
				s.log.Info("payment requires authentication", "sessionId", st.SessionID, "attempt", st.PaymentAttempt)
				return stepResult{}, keepProgress{err: apperr.PaymentActionRequired("please complete the verification requested by your bank")}
			default:
				s.log.Info("payment not completed", "sessionId", st.SessionID, "status", confirmation.Status, "attempt", st.PaymentAttempt)
				return stepResult{}, keepProgress{err: apperr.PaymentDeclined("the payment was not completed, please try another payment method")}
			}
		}

		details := ports.PlanDetails{
			PlanID:      plan.ID,
			PlanName:    plan.Name,
			RouterAdded: st.RouterAdded,
			AmountCents: st.PaymentAmount,
		}
		customerID, err := s.leads.ConvertLeadToCustomer(ctx, *st.LeadID, st.PaymentReference, details)
		if err != nil {
			s.log.WithContext(ctx).CollaboratorFailure("leads", "convert_lead_to_customer", err)
			return stepResult{}, keepProgress{err: apperr.Upstream("your payment was received but we could not finish signup, please try again", err)}
		}
		st.CustomerID = &customerID

		routerPrice := domain.Cents(0)
		if st.RouterAdded {
			routerPrice = s.prices.RouterPrice()
		}
		completed := events.FunnelCheckoutCompleted{
			BaseEvent:        events.NewBaseEvent(),
			SessionID:        st.SessionID,
			LeadID:           *st.LeadID,
			CustomerID:       customerID,
			FormattedAddress: formattedAddress(st.Address),
			PlanID:           string(plan.ID),
			PlanName:         plan.Name,
			PlanPriceCents:   int64(plan.PriceCents),
			RouterAdded:      st.RouterAdded,
			RouterPriceCents: int64(routerPrice),
			AmountCents:      int64(st.PaymentAmount),
			PaymentReference: st.PaymentReference,
		}
		if st.Contact != nil {
			completed.Email = st.Contact.Email
			completed.FirstName = st.Contact.FirstName
			completed.LastName = st.Contact.LastName
		}
		return stepResult{outcome: domain.OutcomePaid, events: []events.Event{completed}}, nil
	})
}

// updateLead writes update when the session has a lead.
func (s *Service) updateLead(ctx context.Context, st *domain.State, update ports.LeadUpdate) error {
	if st.LeadID == nil {
		return nil
	}
	if err := s.leads.UpdateLead(ctx, *st.LeadID, update); err != nil {
		s.log.WithContext(ctx).CollaboratorFailure("leads", "update_lead", err)
		return apperr.Upstream("we could not save your choice, please try again", err)
	}
	return nil
}

func validateWiFi(ssid, password string) map[string]string {
	details := map[string]string{}
	if ssid == "" {
		details["ssid"] = "required"
	} else if utf8.RuneCountInString(ssid) > maxSSIDLength {
		details["ssid"] = "must be at most 32 characters"
	}
	switch n := len(password); {
	case n == 0:
		details["password"] = "required"
	case n < minWiFiPasswordLength || n > maxWiFiPasswordLength:
		details["password"] = "must be between 8 and 63 characters"
	}
	return details
}

func addressFromQuery(q ports.AddressQuery) *domain.Address {
	return &domain.Address{
		Line1:   q.Line1,
		Line2:   q.Line2,
		City:    q.City,
		State:   q.State,
		ZipCode: q.ZipCode,
	}
}

func formattedAddress(a *domain.Address) string {
	if a == nil {
		return ""
	}
	if a.FormattedAddress != "" {
		return a.FormattedAddress
	}
	parts := []string{a.Line1}
	if a.Line2 != "" {
		parts = append(parts, a.Line2)
	}
	parts = append(parts, a.City, a.State+" "+a.ZipCode)
	return strings.Join(parts, ", ")
}

func notQualifiedEvent(st domain.State, reason string) events.FunnelAddressNotQualified {
	event := events.FunnelAddressNotQualified{
		BaseEvent:        events.NewBaseEvent(),
		SessionID:        st.SessionID,
		LeadID:           st.LeadID,
		FormattedAddress: formattedAddress(st.Address),
		Reason:           reason,
	}
	if st.Contact != nil {
		event.Email = st.Contact.Email
		event.FirstName = st.Contact.FirstName
	}
	return event
}

func customerInfo(st domain.State) ports.CustomerInfo {
	info := ports.CustomerInfo{}
	if st.LeadID != nil {
		info.LeadID = *st.LeadID
	}
	if st.Contact != nil {
		info.Email = st.Contact.Email
		info.Name = st.Contact.FullName()
		info.Phone = st.Contact.Phone
	}
	return info
}
