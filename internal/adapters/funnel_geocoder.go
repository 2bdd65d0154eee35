package adapters

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/internal/maps"
)

// FunnelGeocoder adapts the maps service to the funnel's Geocoder port.
type FunnelGeocoder struct {
	maps *maps.Service
}

func NewFunnelGeocoder(svc *maps.Service) *FunnelGeocoder {
	return &FunnelGeocoder{maps: svc}
}

func (a *FunnelGeocoder) Geocode(ctx context.Context, query ports.AddressQuery) (domain.Address, error) {
	match, err := a.maps.Resolve(ctx, maps.StructuredQuery{
		Street:  query.Line1,
		City:    query.City,
		State:   query.State,
		ZipCode: query.ZipCode,
	})
	if errors.Is(err, maps.ErrNoMatch) {
		return domain.Address{}, ports.ErrAddressNotFound
	}
	if err != nil {
		return domain.Address{}, err
	}

	addr := domain.Address{
		Line1:            strings.TrimSpace(match.HouseNumber + " " + match.Street),
		Line2:            query.Line2,
		City:             match.City,
		State:            match.State,
		ZipCode:          match.ZipCode,
		Latitude:         parseCoordinate(match.Lat),
		Longitude:        parseCoordinate(match.Lon),
		ExternalPlaceID:  match.PlaceID,
		FormattedAddress: match.Label,
	}
	// The geocoder may omit parts the customer did supply.
	if addr.State == "" {
		addr.State = query.State
	}
	if addr.ZipCode == "" {
		addr.ZipCode = query.ZipCode
	}
	return addr, nil
}

func parseCoordinate(raw string) *float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

var _ ports.Geocoder = (*FunnelGeocoder)(nil)
