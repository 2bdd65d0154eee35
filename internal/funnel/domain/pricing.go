package domain

import (
	"errors"
	"fmt"
)

// Cents is an amount of money in the smallest currency unit.
type Cents int64

// String formats c as a decimal amount, e.g. 16495 -> "164.95".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// PlanID identifies a plan in the catalog.
type PlanID string

// Plan is a service tier a customer can buy.
type Plan struct {
	ID             PlanID
	Name           string
	Description    string
	DownloadMbps   int
	UploadMbps     int
	PriceCents     Cents
	IncludesRouter bool
}

// PriceList is the closed set of plans and the router add-on price.
type PriceList interface {
	Plan(id PlanID) (Plan, bool)
	RouterPrice() Cents
}

// ErrUnknownPlan is returned for a plan id outside the catalog.
var ErrUnknownPlan = errors.New("unknown plan")

// TotalAmountDueToday is the plan price plus the router add-on when it was taken.
// No proration, tax or currency conversion applies.
func TotalAmountDueToday(prices PriceList, planID PlanID, routerAdded bool) (Cents, error) {
	plan, ok := prices.Plan(planID)
	if !ok {
		return 0, ErrUnknownPlan
	}
	total := plan.PriceCents
	if routerAdded && !plan.IncludesRouter {
		total += prices.RouterPrice()
	}
	return total, nil
}
