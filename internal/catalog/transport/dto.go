package transport

type PlanResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	DownloadMbps   int    `json:"downloadMbps,omitempty"`
	UploadMbps     int    `json:"uploadMbps,omitempty"`
	Price          string `json:"price"`
	PriceCents     int64  `json:"priceCents"`
	IncludesRouter bool   `json:"includesRouter"`
}

type CatalogResponse struct {
	Currency         string         `json:"currency"`
	RouterPrice      string         `json:"routerPrice"`
	RouterPriceCents int64          `json:"routerPriceCents"`
	Plans            []PlanResponse `json:"plans"`
}
