// Package domain provides the core business rules for the signup funnel:
// steps, the transition table, the session state, and pricing.
package domain

// Step identifies where a session is in the funnel.
type Step string

const (
	StepAddress              Step = "address"
	StepContact              Step = "contact"
	StepQualificationSuccess Step = "qualification-success"
	StepPlanSelection        Step = "plan-selection"
	StepWiFiSetup            Step = "wifi-setup"
	StepRouterOffer          Step = "router-offer"
	StepCheckout             Step = "checkout"
	StepNotQualified         Step = "not-qualified"
	StepComplete             Step = "complete"
)

// InitialStep is where every fresh session starts.
const InitialStep = StepAddress

// terminalSteps accept no further outcome.
var terminalSteps = map[Step]bool{
	StepNotQualified: true,
	StepComplete:     true,
}

// qualifiedSteps can only be entered by a session whose address qualified.
var qualifiedSteps = map[Step]bool{
	StepQualificationSuccess: true,
	StepPlanSelection:        true,
	StepWiFiSetup:            true,
	StepRouterOffer:          true,
	StepCheckout:             true,
	StepComplete:             true,
}

var knownSteps = map[Step]struct{}{
	StepAddress:              {},
	StepContact:              {},
	StepQualificationSuccess: {},
	StepPlanSelection:        {},
	StepWiFiSetup:            {},
	StepRouterOffer:          {},
	StepCheckout:             {},
	StepNotQualified:         {},
	StepComplete:             {},
}

// IsKnown reports whether s is one of the defined steps.
func (s Step) IsKnown() bool {
	_, ok := knownSteps[s]
	return ok
}

// IsTerminal reports whether s is a final step.
func (s Step) IsTerminal() bool {
	return terminalSteps[s]
}

// RequiresQualification reports whether entering s needs a qualified address.
func (s Step) RequiresQualification() bool {
	return qualifiedSteps[s]
}

func (s Step) String() string {
	return string(s)
}
