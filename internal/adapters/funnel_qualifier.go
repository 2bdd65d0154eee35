package adapters

import (
	"context"

	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/internal/qualification"
)

// FunnelQualifier adapts the coverage provider client to the QualificationChecker port.
type FunnelQualifier struct {
	client *qualification.Client
}

func NewFunnelQualifier(client *qualification.Client) *FunnelQualifier {
	return &FunnelQualifier{client: client}
}

func (a *FunnelQualifier) Check(ctx context.Context, address domain.Address) (ports.QualificationResult, error) {
	res, err := a.client.Check(ctx, qualification.Request{
		Line1:     address.Line1,
		Line2:     address.Line2,
		City:      address.City,
		State:     address.State,
		ZipCode:   address.ZipCode,
		Latitude:  address.Latitude,
		Longitude: address.Longitude,
	})
	if err != nil {
		return ports.QualificationResult{}, err
	}
	return ports.QualificationResult{
		Qualified:   res.Qualified,
		NetworkType: res.NetworkType,
		Source:      res.Source,
	}, nil
}

var _ ports.QualificationChecker = (*FunnelQualifier)(nil)
