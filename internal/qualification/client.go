// Package qualification asks the coverage provider whether fixed-wireless
// service is available at an address.
package qualification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"signup_funnel_backend/platform/config"
	"signup_funnel_backend/platform/logger"

	"github.com/tidwall/gjson"
)

// ErrMalformedResponse is returned when the provider answers without a boolean "qualified" field.
var ErrMalformedResponse = errors.New("malformed qualification response")

const (
	maxResponseBytes = 1 << 20
	staticSource     = "static"
	defaultNetwork   = "fixed-wireless"
)

// Request is the normalized address sent to the provider.
type Request struct {
	Line1     string   `json:"line1"`
	Line2     string   `json:"line2,omitempty"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	ZipCode   string   `json:"zipCode"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Result is the provider's availability answer.
type Result struct {
	Qualified   bool
	NetworkType string
	Source      string
}

// Client calls the coverage provider. Without a configured URL every address
// qualifies, which keeps local development usable.
type Client struct {
	http   *http.Client
	url    string
	apiKey string
	source string
	log    *logger.Logger
}

func NewClient(cfg config.QualificationConfig, log *logger.Logger) *Client {
	if cfg.GetQualificationAPIURL() == "" {
		log.Warn("qualification provider not configured, all addresses qualify")
	}
	return &Client{
		http:   &http.Client{Timeout: 10 * time.Second},
		url:    cfg.GetQualificationAPIURL(),
		apiKey: cfg.GetQualificationAPIKey(),
		source: cfg.GetQualificationSource(),
		log:    log,
	}
}

// Check posts the address to the provider and interprets its answer.
func (c *Client) Check(ctx context.Context, req Request) (Result, error) {
	if c.url == "" {
		return Result{Qualified: true, NetworkType: defaultNetwork, Source: staticSource}, nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode qualification request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Error("qualification request failed", "error", err)
		return Result{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read qualification response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("qualification upstream error", "status", resp.StatusCode)
		return Result{}, fmt.Errorf("qualification upstream error: %d", resp.StatusCode)
	}

	return c.parse(raw)
}

func (c *Client) parse(raw []byte) (Result, error) {
	if !gjson.ValidBytes(raw) {
		return Result{}, ErrMalformedResponse
	}

	qualified := gjson.GetBytes(raw, "qualified")
	if qualified.Type != gjson.True && qualified.Type != gjson.False {
		return Result{}, ErrMalformedResponse
	}

	result := Result{
		Qualified:   qualified.Bool(),
		NetworkType: strings.TrimSpace(gjson.GetBytes(raw, "networkType").String()),
		Source:      c.source,
	}
	if source := strings.TrimSpace(gjson.GetBytes(raw, "source").String()); source != "" {
		result.Source = source
	}
	if result.Qualified && result.NetworkType == "" {
		result.NetworkType = defaultNetwork
	}
	return result, nil
}
