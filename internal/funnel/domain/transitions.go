package domain

import "errors"

// Outcome is the resolved result of a step's forward action.
type Outcome string

const (
	OutcomeQualified      Outcome = "qualified"
	OutcomePreQualified   Outcome = "pre-qualified"
	OutcomeNotQualified   Outcome = "not-qualified"
	OutcomeLeadSaved      Outcome = "lead-saved"
	OutcomeContinue       Outcome = "continue"
	OutcomePlanChosen     Outcome = "plan-chosen"
	OutcomeWiFiConfigured Outcome = "wifi-configured"
	OutcomeRouterIncluded Outcome = "router-included"
	OutcomeRouterDecided  Outcome = "router-decided"
	OutcomePaid           Outcome = "paid"
)

var (
	// ErrIllegalTransition is returned when no edge leaves the current step for an outcome.
	ErrIllegalTransition = errors.New("illegal funnel transition")
	// ErrQualificationRequired is returned when the target step needs a qualified address.
	ErrQualificationRequired = errors.New("address must qualify before continuing")
)

type edge struct {
	from    Step
	outcome Outcome
}

// transitions lists every legal edge. OutcomeNotQualified is handled separately
// because it leaves any non-terminal step.
var transitions = map[edge]Step{
	{StepAddress, OutcomeQualified}:             StepContact,
	{StepAddress, OutcomePreQualified}:          StepPlanSelection,
	{StepContact, OutcomeLeadSaved}:             StepQualificationSuccess,
	{StepQualificationSuccess, OutcomeContinue}: StepPlanSelection,
	{StepPlanSelection, OutcomePlanChosen}:      StepWiFiSetup,
	{StepWiFiSetup, OutcomeWiFiConfigured}:      StepRouterOffer,
	{StepWiFiSetup, OutcomeRouterIncluded}:      StepCheckout,
	{StepRouterOffer, OutcomeRouterDecided}:     StepCheckout,
	{StepCheckout, OutcomePaid}:                 StepComplete,
}

// TransitionFor returns the step reached from "from" on outcome.
// The boolean is false when the edge does not exist.
func TransitionFor(from Step, outcome Outcome) (Step, bool) {
	if from.IsTerminal() {
		return "", false
	}
	if outcome == OutcomeNotQualified {
		return StepNotQualified, true
	}
	to, ok := transitions[edge{from: from, outcome: outcome}]
	return to, ok
}

// NextStep validates the edge and the qualification gate without mutating anything.
func NextStep(from Step, outcome Outcome, qualified bool) (Step, error) {
	to, ok := TransitionFor(from, outcome)
	if !ok {
		return from, ErrIllegalTransition
	}
	if to.RequiresQualification() && !qualified {
		return from, ErrQualificationRequired
	}
	return to, nil
}
