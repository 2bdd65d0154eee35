// Package repository loads the plan catalog: the closed set of plans a
// customer can buy and the router add-on price. Plans come from a YAML
// file, or from built-in defaults.
package repository

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"signup_funnel_backend/internal/funnel/domain"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a catalog file.
type File struct {
	Currency         string     `yaml:"currency"`
	RouterPriceCents int64      `yaml:"routerPriceCents"`
	Plans            []PlanFile `yaml:"plans"`
}

// PlanFile is one plan entry in a catalog file.
type PlanFile struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	DownloadMbps   int    `yaml:"downloadMbps"`
	UploadMbps     int    `yaml:"uploadMbps"`
	PriceCents     int64  `yaml:"priceCents"`
	IncludesRouter bool   `yaml:"includesRouter"`
}

// Catalog is an immutable, validated plan catalog. It implements domain.PriceList.
type Catalog struct {
	currency    string
	routerPrice domain.Cents
	plans       map[domain.PlanID]domain.Plan
	order       []domain.PlanID
}

// defaultFile is used when no catalog path is configured.
var defaultFile = File{
	Currency:         "usd",
	RouterPriceCents: 2500,
	Plans: []PlanFile{
		{
			ID:           "standard",
			Name:         "Standard",
			Description:  "Reliable home internet for browsing, streaming and video calls.",
			DownloadMbps: 100,
			UploadMbps:   20,
			PriceCents:   8995,
		},
		{
			ID:           "premium",
			Name:         "Premium",
			Description:  "Faster speeds for busy households, gaming and 4K streaming.",
			DownloadMbps: 300,
			UploadMbps:   50,
			PriceCents:   13995,
		},
	},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultFile)
	if err != nil {
		panic("invalid default catalog: " + err.Error())
	}
	return c
}

// Load reads a catalog file, or returns the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML catalog.
func Parse(raw []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(f)
}

// New validates f and builds a Catalog.
func New(f File) (*Catalog, error) {
	if len(f.Plans) == 0 {
		return nil, errors.New("catalog has no plans")
	}
	if f.RouterPriceCents < 0 {
		return nil, errors.New("router price must not be negative")
	}

	c := &Catalog{
		currency:    strings.ToLower(strings.TrimSpace(f.Currency)),
		routerPrice: domain.Cents(f.RouterPriceCents),
		plans:       make(map[domain.PlanID]domain.Plan, len(f.Plans)),
	}
	if c.currency == "" {
		c.currency = "usd"
	}

	for _, p := range f.Plans {
		id := domain.PlanID(strings.TrimSpace(p.ID))
		if id == "" {
			return nil, errors.New("plan id is required")
		}
		if _, dup := c.plans[id]; dup {
			return nil, fmt.Errorf("duplicate plan id %q", id)
		}
		if p.PriceCents <= 0 {
			return nil, fmt.Errorf("plan %q must have a positive price", id)
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = string(id)
		}
		c.plans[id] = domain.Plan{
			ID:             id,
			Name:           name,
			Description:    strings.TrimSpace(p.Description),
			DownloadMbps:   p.DownloadMbps,
			UploadMbps:     p.UploadMbps,
			PriceCents:     domain.Cents(p.PriceCents),
			IncludesRouter: p.IncludesRouter,
		}
		c.order = append(c.order, id)
	}

	sort.SliceStable(c.order, func(i, j int) bool {
		return c.plans[c.order[i]].PriceCents < c.plans[c.order[j]].PriceCents
	})
	return c, nil
}

// Plan looks up a plan by id.
func (c *Catalog) Plan(id domain.PlanID) (domain.Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// RouterPrice is the price of the router add-on.
func (c *Catalog) RouterPrice() domain.Cents {
	return c.routerPrice
}

// Currency is the ISO currency code prices are expressed in.
func (c *Catalog) Currency() string {
	return c.currency
}

// Plans lists all plans, cheapest first.
func (c *Catalog) Plans() []domain.Plan {
	out := make([]domain.Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

var _ domain.PriceList = (*Catalog)(nil)
