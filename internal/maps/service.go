package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/logger"
)

// ErrNoMatch is returned by Resolve when the geocoder has no result for the address.
var ErrNoMatch = errors.New("no matching address")

type Service struct {
	client       *http.Client
	baseURL      string
	countryCodes string
	userAgent    string
	log          *logger.Logger
}

func NewService(cfg config.GeocoderConfig, log *logger.Logger) *Service {
	return &Service{
		client:       &http.Client{Timeout: 5 * time.Second},
		baseURL:      cfg.GetGeocoderURL(),
		countryCodes: cfg.GetGeocoderCountryCodes(),
		userAgent:    cfg.GetGeocoderUserAgent(),
		log:          log,
	}
}

// SearchAddress returns up to five suggestions for a free-text query.
func (s *Service) SearchAddress(ctx context.Context, query string) ([]AddressSuggestion, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("limit", "5")

	return s.search(ctx, params)
}

// Resolve geocodes a structured address to its best match.
func (s *Service) Resolve(ctx context.Context, query StructuredQuery) (AddressSuggestion, error) {
	params := url.Values{}
	params.Add("street", query.Street)
	if query.City != "" {
		params.Add("city", query.City)
	}
	if query.State != "" {
		params.Add("state", query.State)
	}
	if query.ZipCode != "" {
		params.Add("postalcode", query.ZipCode)
	}
	params.Add("limit", "1")

	suggestions, err := s.search(ctx, params)
	if err != nil {
		return AddressSuggestion{}, err
	}
	if len(suggestions) == 0 {
		return AddressSuggestion{}, ErrNoMatch
	}
	return suggestions[0], nil
}

func (s *Service) search(ctx context.Context, params url.Values) ([]AddressSuggestion, error) {
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	if s.countryCodes != "" {
		params.Add("countrycodes", s.countryCodes)
	}

	reqURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("nominatim request failed", "error", err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("nominatim upstream error", "status", resp.StatusCode)
		return nil, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var rawResults []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResults); err != nil {
		s.log.Error("failed to decode nominatim payload", "error", err)
		return nil, err
	}

	suggestions := make([]AddressSuggestion, 0, len(rawResults))
	for _, raw := range rawResults {
		suggestion, ok := buildSuggestion(raw)
		if !ok {
			continue
		}

		suggestions = append(suggestions, suggestion)
	}

	return suggestions, nil
}

func buildSuggestion(raw nominatimResponse) (AddressSuggestion, bool) {
	if raw.Address.Road == "" {
		return AddressSuggestion{}, false
	}

	city := pickCity(raw.Address)
	if city == "" {
		return AddressSuggestion{}, false
	}

	suggestion := AddressSuggestion{
		Street:      raw.Address.Road,
		HouseNumber: raw.Address.HouseNumber,
		ZipCode:     raw.Address.Postcode,
		City:        city,
		State:       pickState(raw.Address),
		Lat:         raw.Lat,
		Lon:         raw.Lon,
	}
	if raw.PlaceID != 0 {
		suggestion.PlaceID = strconv.FormatInt(raw.PlaceID, 10)
	}

	suggestion.Label = buildLabel(suggestion)

	return suggestion, true
}

func pickCity(address nominatimAddress) string {
	if address.City != "" {
		return address.City
	}
	if address.Town != "" {
		return address.Town
	}
	if address.Village != "" {
		return address.Village
	}
	if address.Municipality != "" {
		return address.Municipality
	}
	return address.Hamlet
}

// pickState prefers the two-letter code from "US-TX" over the full state name.
func pickState(address nominatimAddress) string {
	if code, ok := strings.CutPrefix(address.StateCode, "US-"); ok && code != "" {
		return code
	}
	return address.State
}

// buildLabel formats "1100 Congress Ave, Austin, TX 78701".
func buildLabel(suggestion AddressSuggestion) string {
	street := strings.TrimSpace(suggestion.HouseNumber + " " + suggestion.Street)
	parts := []string{street, suggestion.City}

	tail := strings.TrimSpace(suggestion.State + " " + suggestion.ZipCode)
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}
