// Package startflow runs the preflight checks between a "start a fit check"
// link and the fit scan result page.
package startflow

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	"github.com/jrsteele09/grantpilot-workspace/intent"
	werrors "github.com/jrsteele09/grantpilot-workspace/internal/errors"
	"github.com/jrsteele09/grantpilot-workspace/nav"
	"github.com/rs/zerolog/log"
)

// DefaultFitScanTimeout bounds the fit scan create call.
const DefaultFitScanTimeout = 30 * time.Second

// API is the subset of the GrantPilot API the flow calls.
type API interface {
	GetFundingOpportunity(ctx context.Context, id string) (*apiclient.FundingOpportunity, error)
	GetProfileCompleteness(ctx context.Context) (*apiclient.ProfileCompleteness, error)
	GetEntitlements(ctx context.Context) (*apiclient.Entitlements, error)
	CreateFitScan(ctx context.Context, opportunityID string) (*apiclient.FitScan, error)
}

// Authenticator reports whether the browser has a session.
type Authenticator interface {
	IsAuthenticated() bool
}

// Context is the state a flow accumulates as it runs.
type Context struct {
	OpportunityID      string
	Step               Step
	Opportunity        *apiclient.FundingOpportunity
	CompletenessStatus apiclient.CompletenessStatus
	Plan               apiclient.Plan
	FitScanID          string
}

// Outcome is where a run stopped. Redirect is set when the flow navigated
// away; otherwise Message describes the terminal state.
type Outcome struct {
	Step      Step
	Reason    Reason
	Redirect  string
	Message   string
	Retryable bool
	Context   Context
}

// Flow is one start flow instance for one opportunity id.
type Flow struct {
	api            API
	auth           Authenticator
	store          intent.Store
	navigator      nav.Navigator
	fitScanTimeout time.Duration
	observer       func(Context)

	mu   sync.Mutex
	fc   Context
	last *Outcome
}

// Option defines a function type to modify the Flow instance.
type Option func(*Flow)

// WithFitScanTimeout overrides DefaultFitScanTimeout.
func WithFitScanTimeout(timeout time.Duration) Option {
	return func(f *Flow) {
		if timeout > 0 {
			f.fitScanTimeout = timeout
		}
	}
}

// WithObserver registers a callback invoked on every step change.
func WithObserver(observer func(Context)) Option {
	return func(f *Flow) {
		f.observer = observer
	}
}

// New creates a flow for opportunityID.
func New(opportunityID string, api API, auth Authenticator, store intent.Store, navigator nav.Navigator, options ...Option) *Flow {
	f := &Flow{
		api:            api,
		auth:           auth,
		store:          store,
		navigator:      navigator,
		fitScanTimeout: DefaultFitScanTimeout,
		fc:             Context{OpportunityID: opportunityID},
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Context returns a snapshot of the flow state.
func (f *Flow) Context() Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fc
}

// Run drives the flow until it redirects or reaches a terminal state.
func (f *Flow) Run(ctx context.Context) Outcome {
	id := f.Context().OpportunityID
	if !intent.IsOpportunityID(id) {
		return f.finish(StepBlockedInvalidLink, ReasonMalformedID, MessageInvalidLink)
	}

	if !f.auth.IsAuthenticated() {
		f.setStep(StepAuthenticating)
		f.store.Store(intent.KeyOpportunity, id)
		target := nav.LoginURL(intent.StartFlowPath(id))
		f.navigator.Navigate(ctx, target)
		return f.redirect(target)
	}

	return f.run(ctx, id)
}

// Retry restarts a failed flow from opportunity validation. A flow in any
// other state returns its last outcome.
func (f *Flow) Retry(ctx context.Context) Outcome {
	f.mu.Lock()
	last := f.last
	f.mu.Unlock()
	if last != nil && last.Step != StepFailed {
		return *last
	}
	return f.Run(ctx)
}

func (f *Flow) run(ctx context.Context, id string) Outcome {
	f.mu.Lock()
	f.fc = Context{OpportunityID: id}
	f.mu.Unlock()

	f.setStep(StepValidatingOpportunity)
	opportunity, err := f.api.GetFundingOpportunity(ctx, id)
	if err != nil {
		return f.opportunityError(ctx, id, err)
	}
	f.update(func(c *Context) { c.Opportunity = opportunity })
	if !opportunity.Active() {
		return f.finish(StepBlockedInactiveOpportunity, ReasonInactive, MessageInactive)
	}

	f.setStep(StepCheckingCompleteness)
	completeness, err := f.api.GetProfileCompleteness(ctx)
	if err != nil {
		return f.apiError(ctx, id, err)
	}
	f.update(func(c *Context) { c.CompletenessStatus = completeness.Status })
	if completeness.Status != apiclient.CompletenessComplete {
		return f.navigate(ctx, ProfileURL(id, MessageCompleteProfile))
	}

	f.setStep(StepCheckingQuota)
	entitlements, err := f.api.GetEntitlements(ctx)
	if err != nil {
		return f.apiError(ctx, id, err)
	}
	f.update(func(c *Context) { c.Plan = entitlements.Plan })
	if entitlements.FitScansRemaining() <= 0 {
		return f.finish(StepBlockedQuota, ReasonQuotaExhausted, QuotaMessage(string(entitlements.Plan)))
	}

	f.setStep(StepCreatingFitScan)
	createCtx, cancel := context.WithTimeout(ctx, f.fitScanTimeout)
	defer cancel()
	scan, err := f.api.CreateFitScan(createCtx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Str("opportunity_id", id).Dur("timeout", f.fitScanTimeout).Msg("Fit scan creation timed out")
			return f.finish(StepFailed, ReasonTimeout, MessageFailed)
		}
		return f.apiError(ctx, id, err)
	}
	f.update(func(c *Context) { c.FitScanID = scan.ID })
	return f.navigate(ctx, FitScanURL(scan.ID))
}

func (f *Flow) opportunityError(ctx context.Context, id string, err error) Outcome {
	switch {
	case werrors.Is(err, werrors.ErrNotFound):
		return f.finish(StepBlockedInvalidLink, ReasonNotFound, MessageNotFound)
	case werrors.Is(err, werrors.ErrForbidden):
		return f.finish(StepBlockedInactiveOpportunity, ReasonInactive, MessageInactive)
	}
	return f.apiError(ctx, id, err)
}

func (f *Flow) apiError(ctx context.Context, id string, err error) Outcome {
	switch {
	case apiclient.HasCode(err, http.StatusConflict, apiclient.CodeProfileIncomplete):
		return f.navigate(ctx, ProfileURL(id, ""))
	case apiclient.HasCode(err, http.StatusTooManyRequests, apiclient.CodeQuotaExceeded):
		return f.finish(StepBlockedQuota, ReasonQuotaExhausted, QuotaMessage(string(f.Context().Plan)))
	case werrors.Is(err, werrors.ErrUnauthenticated):
		// the session has already cleared itself and navigated to login
		f.setStep(StepAuthenticating)
		f.store.Store(intent.KeyOpportunity, id)
		return f.redirect(nav.LoginURL(intent.StartFlowPath(id)))
	}
	log.Err(err).Str("opportunity_id", id).Str("step", string(f.Context().Step)).Msg("Start flow failed")
	return f.finish(StepFailed, ReasonError, MessageFailed)
}

func (f *Flow) setStep(step Step) {
	f.update(func(c *Context) { c.Step = step })
	log.Debug().Str("opportunity_id", f.Context().OpportunityID).Str("step", string(step)).Msg("Start flow step")
}

func (f *Flow) update(mutate func(*Context)) {
	f.mu.Lock()
	mutate(&f.fc)
	snapshot := f.fc
	f.mu.Unlock()
	if f.observer != nil {
		f.observer(snapshot)
	}
}

func (f *Flow) navigate(ctx context.Context, target string) Outcome {
	f.navigator.Navigate(ctx, target)
	return f.redirect(target)
}

func (f *Flow) redirect(target string) Outcome {
	return f.record(Outcome{Step: f.Context().Step, Redirect: target})
}

func (f *Flow) finish(step Step, reason Reason, message string) Outcome {
	f.setStep(step)
	return f.record(Outcome{
		Step:      step,
		Reason:    reason,
		Message:   message,
		Retryable: step == StepFailed,
	})
}

func (f *Flow) record(outcome Outcome) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	outcome.Context = f.fc
	f.last = &outcome
	return outcome
}

// ProfileURL is the profile editor carrying id for resumption after the
// profile is complete.
func ProfileURL(id, message string) string {
	target := "/profile?from=start&opportunity_id=" + url.QueryEscape(id)
	if message != "" {
		target += "&message=" + url.QueryEscape(message)
	}
	return target
}

// FitScanURL is the result page of a fit scan.
func FitScanURL(id string) string {
	return "/fit-scan/" + url.PathEscape(id)
}
