package service

import (
	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/transport"
)

func toSessionResponse(st domain.State, prices domain.PriceList) transport.SessionResponse {
	total, err := st.TotalAmountDueToday(prices)
	if err != nil {
		total = 0
	}

	resp := transport.SessionResponse{
		SessionID:                st.SessionID,
		Step:                     string(st.Step),
		LeadID:                   st.LeadID,
		Qualified:                st.Qualified,
		QualificationSource:      st.QualificationSource,
		NetworkType:              st.NetworkType,
		PlanSelected:             string(st.PlanSelected),
		RouterAdded:              st.RouterAdded,
		TotalAmountDueToday:      total.String(),
		TotalAmountDueTodayCents: int64(total),
		PaymentReference:         st.PaymentReference,
		CustomerID:               st.CustomerID,
		ExpiresAt:                st.ExpiresAt,
	}
	if st.Step == domain.StepCheckout && st.PaymentReference == "" {
		resp.PaymentClientSecret = st.PaymentClientSecret
	}
	if st.Address != nil {
		resp.Address = &transport.AddressResponse{
			Line1:            st.Address.Line1,
			Line2:            st.Address.Line2,
			City:             st.Address.City,
			State:            st.Address.State,
			ZipCode:          st.Address.ZipCode,
			Latitude:         st.Address.Latitude,
			Longitude:        st.Address.Longitude,
			ExternalPlaceID:  st.Address.ExternalPlaceID,
			FormattedAddress: st.Address.FormattedAddress,
		}
	}
	if st.Contact != nil {
		resp.Contact = &transport.ContactResponse{
			Email:     st.Contact.Email,
			Phone:     st.Contact.Phone,
			FirstName: st.Contact.FirstName,
			LastName:  st.Contact.LastName,
		}
	}
	if st.WiFi != nil {
		resp.WiFi = &transport.WiFiResponse{
			SSID:        st.WiFi.SSID,
			HasPassword: st.WiFi.SealedPassword != "",
			Skipped:     st.WiFi.Skipped,
		}
	}
	return resp
}
