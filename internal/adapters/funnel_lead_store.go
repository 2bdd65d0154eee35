package adapters

import (
	"context"
	"errors"

	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// LeadRepository is the subset of the leads repository the funnel uses.
type LeadRepository interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error)
	ConvertToCustomer(ctx context.Context, params repository.ConvertLeadParams) (repository.Customer, error)
}

// FunnelLeadStore adapts the leads repository to the funnel's LeadStore port.
type FunnelLeadStore struct {
	repo LeadRepository
}

func NewFunnelLeadStore(repo LeadRepository) *FunnelLeadStore {
	return &FunnelLeadStore{repo: repo}
}

func (a *FunnelLeadStore) CreateLead(ctx context.Context, contact domain.Contact, address domain.Address, qualification ports.QualificationResult) (uuid.UUID, error) {
	lead, err := a.repo.Create(ctx, repository.CreateLeadParams{
		Email:               contact.Email,
		Phone:               contact.Phone,
		FirstName:           contact.FirstName,
		LastName:            contact.LastName,
		AddressLine1:        address.Line1,
		AddressLine2:        optional(address.Line2),
		City:                address.City,
		State:               address.State,
		ZipCode:             address.ZipCode,
		Latitude:            address.Latitude,
		Longitude:           address.Longitude,
		ExternalPlaceID:     optional(address.ExternalPlaceID),
		FormattedAddress:    optional(address.FormattedAddress),
		Qualified:           qualification.Qualified,
		QualificationSource: qualification.Source,
		NetworkType:         optional(qualification.NetworkType),
	})
	if err != nil {
		return uuid.Nil, err
	}
	return lead.ID, nil
}

func (a *FunnelLeadStore) UpdateLead(ctx context.Context, leadID uuid.UUID, update ports.LeadUpdate) error {
	var params repository.UpdateLeadParams
	if c := update.Contact; c != nil {
		params.Email = &c.Email
		params.Phone = &c.Phone
		params.FirstName = &c.FirstName
		params.LastName = &c.LastName
	}
	if addr := update.Address; addr != nil {
		params.AddressLine1 = &addr.Line1
		params.AddressLine2 = optional(addr.Line2)
		params.City = &addr.City
		params.State = &addr.State
		params.ZipCode = &addr.ZipCode
		params.Latitude = addr.Latitude
		params.Longitude = addr.Longitude
		params.ExternalPlaceID = optional(addr.ExternalPlaceID)
		params.FormattedAddress = optional(addr.FormattedAddress)
	}
	if q := update.Qualification; q != nil {
		params.Qualified = &q.Qualified
		params.QualificationSource = &q.Source
		params.NetworkType = optional(q.NetworkType)
	}
	if update.PlanID != nil {
		plan := string(*update.PlanID)
		params.PlanID = &plan
	}
	params.RouterAdded = update.RouterAdded
	if w := update.WiFi; w != nil {
		params.WiFiSSID = optional(w.SSID)
		params.WiFiPasswordSealed = optional(w.SealedPassword)
		params.WiFiSkipped = &w.Skipped
	}

	_, err := a.repo.Update(ctx, leadID, params)
	return mapLeadError(err)
}

func (a *FunnelLeadStore) GetLead(ctx context.Context, leadID uuid.UUID) (ports.LeadSnapshot, error) {
	lead, err := a.repo.GetByID(ctx, leadID)
	if err != nil {
		return ports.LeadSnapshot{}, mapLeadError(err)
	}

	snap := ports.LeadSnapshot{
		ID:                  lead.ID,
		Qualified:           lead.Qualified,
		QualificationSource: lead.QualificationSource,
		NetworkType:         deref(lead.NetworkType),
		Converted:           lead.Status == repository.StatusCustomer,
	}
	if lead.Email != "" {
		snap.Contact = &domain.Contact{
			Email:     lead.Email,
			Phone:     lead.Phone,
			FirstName: lead.FirstName,
			LastName:  lead.LastName,
		}
	}
	if lead.AddressLine1 != "" {
		snap.Address = &domain.Address{
			Line1:            lead.AddressLine1,
			Line2:            deref(lead.AddressLine2),
			City:             lead.City,
			State:            lead.State,
			ZipCode:          lead.ZipCode,
			Latitude:         lead.Latitude,
			Longitude:        lead.Longitude,
			ExternalPlaceID:  deref(lead.ExternalPlaceID),
			FormattedAddress: deref(lead.FormattedAddress),
		}
	}
	return snap, nil
}

func (a *FunnelLeadStore) ConvertLeadToCustomer(ctx context.Context, leadID uuid.UUID, paymentReference string, plan ports.PlanDetails) (uuid.UUID, error) {
	customer, err := a.repo.ConvertToCustomer(ctx, repository.ConvertLeadParams{
		LeadID:           leadID,
		PaymentReference: paymentReference,
		PlanID:           string(plan.PlanID),
		RouterAdded:      plan.RouterAdded,
		AmountCents:      int64(plan.AmountCents),
	})
	if err != nil {
		return uuid.Nil, mapLeadError(err)
	}
	return customer.ID, nil
}

func mapLeadError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ports.ErrLeadNotFound
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ ports.LeadStore = (*FunnelLeadStore)(nil)
