// Package service implements the funnel step controller. Every forward action
// runs under the session's in-flight lock, calls its collaborators on a context
// that outlives the request, and only applies the result if the session is still
// in the generation and step the call was issued from.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signup_funnel_backend/internal/events"
	"signup_funnel_backend/internal/funnel/domain"
	"signup_funnel_backend/internal/funnel/ports"
	"signup_funnel_backend/internal/funnel/session"
	"signup_funnel_backend/internal/funnel/transport"
	"signup_funnel_backend/platform/apperr"
	"signup_funnel_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	msgInProgress  = "a request for this session is already in progress"
	msgStale       = "the session changed while the request was running; reload and try again"
	msgNotFound    = "session not found"
	msgSessionLoad = "failed to load session"
	msgSessionSave = "failed to save session"
)

// PasswordSealer encrypts WiFi passwords before they leave the request.
type PasswordSealer interface {
	Seal(plaintext string) (string, error)
}

// Options wires the service's collaborators.
type Options struct {
	Sessions      session.Store
	Geocoder      ports.Geocoder
	Qualifier     ports.QualificationChecker
	Leads         ports.LeadStore
	Payments      ports.PaymentGateway
	Prices        domain.PriceList
	Sealer        PasswordSealer
	EventBus      events.Bus
	SessionWindow time.Duration
	Log           *logger.Logger
	Now           func() time.Time
}

// Service provides the funnel operations.
type Service struct {
	sessions  session.Store
	geocoder  ports.Geocoder
	qualifier ports.QualificationChecker
	leads     ports.LeadStore
	payments  ports.PaymentGateway
	prices    domain.PriceList
	sealer    PasswordSealer
	eventBus  events.Bus
	window    time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new funnel service.
func New(opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		sessions:  opts.Sessions,
		geocoder:  opts.Geocoder,
		qualifier: opts.Qualifier,
		leads:     opts.Leads,
		payments:  opts.Payments,
		prices:    opts.Prices,
		sealer:    opts.Sealer,
		eventBus:  opts.EventBus,
		window:    opts.SessionWindow,
		log:       opts.Log,
		now:       now,
	}
}

// Open starts the funnel. An existing session is reset in place with a new
// generation; a missing one is replaced by a new session id. When leadID is
// given the lead is reused, and a qualified lead with contact data may skip
// straight from the address step to plan selection.
func (s *Service) Open(ctx context.Context, sessionID *uuid.UUID, leadID *uuid.UUID) (transport.SessionResponse, error) {
	var lead *ports.LeadSnapshot
	if leadID != nil {
		snapshot, err := s.leads.GetLead(ctx, *leadID)
		if errors.Is(err, ports.ErrLeadNotFound) {
			return transport.SessionResponse{}, apperr.Validation("unknown lead")
		}
		if err != nil {
			s.log.WithContext(ctx).CollaboratorFailure("leads", "get_lead", err)
			return transport.SessionResponse{}, apperr.Upstream("could not load the lead, please try again", err)
		}
		if snapshot.Converted {
			return transport.SessionResponse{}, apperr.Validation("this lead has already completed signup")
		}
		lead = &snapshot
	}

	now := s.now()
	state := domain.NewState(uuid.New(), 1, now)
	if sessionID != nil {
		existing, err := s.sessions.Load(ctx, *sessionID)
		switch {
		case err == nil:
			state = existing.Reset(now)
		case !errors.Is(err, session.ErrNotFound):
			return transport.SessionResponse{}, apperr.Wrap(apperr.KindInternal, msgSessionLoad, err)
		}
	}

	if lead != nil {
		reuseLead(&state, *lead)
	}

	if err := s.sessions.Save(ctx, state); err != nil {
		return transport.SessionResponse{}, apperr.Wrap(apperr.KindInternal, msgSessionSave, err)
	}

	s.log.Info("funnel session opened", "sessionId", state.SessionID, "generation", state.Generation, "reusedLead", lead != nil)
	return toSessionResponse(state, s.prices), nil
}

// Get returns the current state. An expired session comes back reset to the initial step.
func (s *Service) Get(ctx context.Context, sessionID uuid.UUID) (transport.SessionResponse, error) {
	state, err := s.current(ctx, sessionID)
	if err != nil {
		return transport.SessionResponse{}, err
	}
	return toSessionResponse(state, s.prices), nil
}

// Close discards the session. Anything already persisted on the lead stays.
func (s *Service) Close(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to close session", err)
	}
	s.log.Info("funnel session closed", "sessionId", sessionID)
	return nil
}

// reuseLead carries the durable lead into a fresh state.
func reuseLead(state *domain.State, lead ports.LeadSnapshot) {
	id := lead.ID
	state.LeadID = &id
	if lead.Contact != nil {
		contact := *lead.Contact
		state.Contact = &contact
	}
	if lead.Qualified && lead.Contact != nil && lead.Address != nil {
		address := *lead.Address
		state.QualifiedAddress = &address
		state.PreQualifiedLead = true
		state.Qualified = true
		state.QualificationSource = lead.QualificationSource
		state.NetworkType = lead.NetworkType
	}
}

// current loads the session, replacing it with a fresh one if its window elapsed.
func (s *Service) current(ctx context.Context, sessionID uuid.UUID) (domain.State, error) {
	state, err := s.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return domain.State{}, apperr.NotFound(msgNotFound)
	}
	if err != nil {
		return domain.State{}, apperr.Wrap(apperr.KindInternal, msgSessionLoad, err)
	}

	now := s.now()
	if !state.Expired(now) {
		return state, nil
	}

	fresh := state.Reset(now)
	if err := s.sessions.Save(ctx, fresh); err != nil {
		return domain.State{}, apperr.Wrap(apperr.KindInternal, msgSessionSave, err)
	}
	s.log.Info("funnel session expired", "sessionId", sessionID, "generation", fresh.Generation)
	return fresh, nil
}

// stepResult is what a forward action hands back to advance.
type stepResult struct {
	outcome domain.Outcome // empty: stay on the current step
	events  []events.Event
}

type stepAction func(ctx context.Context, state *domain.State) (stepResult, error)

// keepProgress wraps an action error whose state changes must still be saved.
type keepProgress struct {
	err error
}

func (k keepProgress) Error() string { return k.err.Error() }

func (k keepProgress) Unwrap() error { return k.err }

// advance runs action against the session if it is at step.
func (s *Service) advance(ctx context.Context, sessionID uuid.UUID, step domain.Step, action stepAction) (transport.SessionResponse, error) {
	unlock, err := s.sessions.Lock(ctx, sessionID)
	if errors.Is(err, session.ErrBusy) {
		return transport.SessionResponse{}, apperr.Conflict(msgInProgress)
	}
	if err != nil {
		return transport.SessionResponse{}, apperr.Wrap(apperr.KindInternal, "failed to lock session", err)
	}
	defer unlock()

	before, err := s.current(ctx, sessionID)
	if err != nil {
		return transport.SessionResponse{}, err
	}
	if before.Step != step {
		return transport.SessionResponse{}, apperr.Conflict(fmt.Sprintf("session is at step %q, not %q", before.Step, step))
	}

	// Collaborator calls are not cancelled by a client disconnect.
	callCtx := context.WithoutCancel(ctx)
	work := before
	result, err := action(callCtx, &work)
	if err != nil {
		var kp keepProgress
		if errors.As(err, &kp) {
			if commitErr := s.commit(callCtx, before, work); commitErr != nil {
				s.logUnsavedCharge(ctx, work, commitErr)
				return transport.SessionResponse{}, commitErr
			}
			return transport.SessionResponse{}, kp.err
		}
		return transport.SessionResponse{}, err
	}

	if result.outcome != "" {
		if err := work.Apply(result.outcome); err != nil {
			return transport.SessionResponse{}, transitionError(err)
		}
	}

	if err := s.commit(callCtx, before, work); err != nil {
		s.logUnsavedCharge(ctx, work, err)
		return transport.SessionResponse{}, err
	}
	if work.Step != before.Step {
		s.log.WithContext(ctx).StepTransition(work.SessionID.String(), string(before.Step), string(work.Step), work.Generation)
	}

	for _, event := range result.events {
		s.eventBus.Publish(callCtx, event)
	}

	return toSessionResponse(work, s.prices), nil
}

// commit saves after only if the stored session is still the one before was read from.
func (s *Service) commit(ctx context.Context, before, after domain.State) error {
	stored, err := s.sessions.Load(ctx, before.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		s.log.Warn("discarding result for closed session", "sessionId", before.SessionID)
		return apperr.Conflict(msgStale)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, msgSessionLoad, err)
	}
	if stored.Generation != before.Generation || stored.Step != before.Step || stored.Expired(s.now()) {
		s.log.Warn("discarding stale result",
			"sessionId", before.SessionID,
			"generation", before.Generation,
			"currentGeneration", stored.Generation,
			"step", before.Step,
			"currentStep", stored.Step,
		)
		return apperr.Conflict(msgStale)
	}

	if err := s.sessions.Save(ctx, after); err != nil {
		return apperr.Wrap(apperr.KindInternal, msgSessionSave, err)
	}
	return nil
}

// logUnsavedCharge reports a payment reference that was lost with the session.
func (s *Service) logUnsavedCharge(ctx context.Context, st domain.State, err error) {
	if st.PaymentReference == "" {
		return
	}
	leadID := ""
	if st.LeadID != nil {
		leadID = st.LeadID.String()
	}
	s.log.WithContext(ctx).UnsavedCharge(st.SessionID.String(), leadID, st.PaymentReference, err)
}

func transitionError(err error) error {
	switch {
	case errors.Is(err, domain.ErrQualificationRequired):
		return apperr.Conflict("the address must qualify before continuing")
	case errors.Is(err, domain.ErrIllegalTransition):
		return apperr.Conflict("that step is not available from here")
	default:
		return err
	}
}
